package server

// CreateRoomRequest configures a new room. When a game is named, zero fields
// fall back to that game's defaults.
type CreateRoomRequest struct {
	Game                     string   `json:"game,omitempty"`
	MinPlayers               int      `json:"min_players,omitempty"`
	MaxPlayers               int      `json:"max_players,omitempty"`
	Phases                   []string `json:"phases,omitempty"`
	AllowJoinInProgress      bool     `json:"allow_join_in_progress,omitempty"`
	DisconnectTimeoutSeconds int      `json:"disconnect_timeout_seconds,omitempty"`
}

// JoinRoomRequest adds a player to a room
type JoinRoomRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PlayerRequest identifies the acting player for operations with no other
// input
type PlayerRequest struct {
	PlayerID string `json:"player_id"`
}

// TransitionPhaseRequest moves the room to another phase
type TransitionPhaseRequest struct {
	PlayerID string `json:"player_id"`
	Phase    string `json:"phase"`
}

// UpdateMetadataRequest replaces the room's shared metadata
type UpdateMetadataRequest struct {
	PlayerID string         `json:"player_id"`
	Metadata map[string]any `json:"metadata"`
}

// ActionRequest submits a game action
type ActionRequest struct {
	PlayerID string `json:"player_id"`
	Type     string `json:"type"`
	Payload  any    `json:"payload,omitempty"`
}
