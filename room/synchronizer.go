package room

import (
	"context"

	"github.com/mcoot/gameroom-go/model"
)

// Synchronizer delivers state and events to clients over whatever transport
// the host provides. A room may run without one, in which case every sync
// step is skipped; with one attached, the room awaits each call and treats
// its error as the operation's failure.
//
// Reference implementations live in syncer/redis and syncer/nats, and the
// demo host wires a websocket hub.
type Synchronizer interface {
	// BroadcastState pushes a full state snapshot to every client
	BroadcastState(ctx context.Context, state *model.GameState) error

	// SendToPlayer pushes a full state snapshot to one player
	SendToPlayer(ctx context.Context, playerID model.PlayerID, state *model.GameState) error

	// BroadcastEvent pushes one of the room's lifecycle events
	BroadcastEvent(ctx context.Context, event model.EventType, payload any) error

	// BroadcastCustomEvent pushes a game-defined event
	BroadcastCustomEvent(ctx context.Context, eventType string, payload any) error
}
