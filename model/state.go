package model

import "time"

// RoomID is a human-readable identifier for joining rooms
type RoomID string

// Phase is a named stage within a game (e.g. "lobby", "question", "results").
// The set of valid phases and their order is defined by GameConfig.Phases.
type Phase string

// RoomStatus represents the lifecycle state of a room
type RoomStatus string

const (
	StatusWaiting RoomStatus = "waiting" // Room open, game not started
	StatusPlaying RoomStatus = "playing" // Game in progress
	StatusEnded   RoomStatus = "ended"   // Game finished, room still open
	StatusClosed  RoomStatus = "closed"  // Room torn down
)

// GameState is the full shared state of a room. It is owned by the room
// orchestrator and replaced wholesale on every update; holders of a snapshot
// never see later mutations.
type GameState struct {
	RoomID    RoomID         `json:"room_id"`
	Phase     Phase          `json:"phase"`
	Players   []Player       `json:"players"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StatePatch is a partial update applied with Merge. nil fields are left
// unchanged; non-nil slice and map fields replace their counterparts
// wholesale rather than merging element-wise.
type StatePatch struct {
	Phase     *Phase
	Players   []Player
	StartedAt *time.Time
	EndedAt   *time.Time
	Metadata  map[string]any
}

// Merge returns a new state with the patch overlaid onto s. The result is
// always a distinct, fully independent value, even for an empty patch.
func (s *GameState) Merge(patch StatePatch) *GameState {
	next := s.Clone()
	if patch.Phase != nil {
		next.Phase = *patch.Phase
	}
	if patch.Players != nil {
		next.Players = clonePlayers(patch.Players)
	}
	if patch.StartedAt != nil {
		t := *patch.StartedAt
		next.StartedAt = &t
	}
	if patch.EndedAt != nil {
		t := *patch.EndedAt
		next.EndedAt = &t
	}
	if patch.Metadata != nil {
		next.Metadata = cloneMetadata(patch.Metadata)
	}
	return next
}

// Clone returns a deep copy of the state with no shared nested references
func (s *GameState) Clone() *GameState {
	next := &GameState{
		RoomID:   s.RoomID,
		Phase:    s.Phase,
		Players:  clonePlayers(s.Players),
		Metadata: cloneMetadata(s.Metadata),
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		next.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		next.EndedAt = &t
	}
	return next
}

// StructurallyValid reports whether the state has the shape the orchestrator
// relies on: a room id, a phase, and players that each carry an id, a name
// and a join timestamp.
func (s *GameState) StructurallyValid() bool {
	if s == nil || s.RoomID == "" || s.Phase == "" {
		return false
	}
	for _, p := range s.Players {
		if p.ID == "" || p.Name == "" || p.JoinedAt.IsZero() {
			return false
		}
	}
	return true
}

// PhaseTransition describes a single phase change
type PhaseTransition struct {
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

func clonePlayers(players []Player) []Player {
	if players == nil {
		return nil
	}
	out := make([]Player, len(players))
	for i, p := range players {
		out[i] = p.Clone()
	}
	return out
}

// cloneMetadata deep-copies the JSON-shaped values games put in metadata maps
func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMetadata(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
