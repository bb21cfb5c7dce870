package model

import "time"

// PlayerID uniquely identifies a player within a room
type PlayerID string

// Player represents a room participant.
// The framework owns IsHost, IsConnected and JoinedAt; Metadata is
// game-defined and carried through untouched.
type Player struct {
	ID          PlayerID       `json:"id"`
	Name        string         `json:"name"`
	IsHost      bool           `json:"is_host"`
	IsConnected bool           `json:"is_connected"`
	JoinedAt    time.Time      `json:"joined_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the player
func (p Player) Clone() Player {
	out := p
	out.Metadata = cloneMetadata(p.Metadata)
	return out
}
