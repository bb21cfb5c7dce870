// Package syncer provides transports that carry a room's announcements
// beyond its own process. Every adapter implements room.Synchronizer for a
// single room and publishes the same wire envelope; Multi combines several
// adapters into one.
package syncer

import (
	"github.com/mcoot/gameroom-go/model"
)

// Envelope kinds
const (
	// KindState is a state snapshot broadcast to the whole room
	KindState = "state"
	// KindDirect is a state snapshot addressed to a single player
	KindDirect = "direct"
	// KindEvent is a room lifecycle event
	KindEvent = "event"
	// KindCustom is a game-defined event
	KindCustom = "custom"
)

// Envelope is the wire form every adapter publishes. State is set for the
// state and direct kinds, Event and Payload for the event kinds.
type Envelope struct {
	Kind     string           `json:"kind"`
	RoomID   model.RoomID     `json:"room_id"`
	PlayerID model.PlayerID   `json:"player_id,omitempty"`
	Event    string           `json:"event,omitempty"`
	State    *model.GameState `json:"state,omitempty"`
	Payload  any              `json:"payload,omitempty"`
}
