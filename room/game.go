package room

import (
	"context"

	"github.com/mcoot/gameroom-go/model"
)

// Hooks is the lifecycle contract a concrete game implements. The room
// invokes each hook after applying the matching state mutation and before
// announcing it; a hook error fails the operation while the mutation stands
// (see Room for the exact protocol).
//
// Hooks run while the room's operation lock is held, so implementations must
// not call back into the Room. Games that need to drive the room in response
// to play should do so from their action handler, which runs outside the
// lock.
type Hooks interface {
	OnPlayerJoin(ctx context.Context, player model.Player) error
	OnPlayerLeave(ctx context.Context, playerID model.PlayerID) error
	OnGameStart(ctx context.Context) error
	OnGameEnd(ctx context.Context) error
	OnPhaseChange(ctx context.Context, transition model.PhaseTransition) error
}

// ActionHandler is the play contract a concrete game implements. The room
// routes player actions here without interpreting them. Handlers run outside
// the room's operation lock and may call back into the Room.
type ActionHandler interface {
	HandleAction(ctx context.Context, action model.PlayerAction) (model.ActionResult, error)
}

// Game is the full capability set a room needs from a concrete game
type Game interface {
	Hooks
	ActionHandler
}

// NopHooks implements Hooks with no-ops. Embed it to implement only the
// hooks a game cares about.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) OnPlayerJoin(ctx context.Context, player model.Player) error { return nil }

func (NopHooks) OnPlayerLeave(ctx context.Context, playerID model.PlayerID) error { return nil }

func (NopHooks) OnGameStart(ctx context.Context) error { return nil }

func (NopHooks) OnGameEnd(ctx context.Context) error { return nil }

func (NopHooks) OnPhaseChange(ctx context.Context, transition model.PhaseTransition) error {
	return nil
}

// nopGame stands in when a room is created without a game
type nopGame struct {
	NopHooks
}

func (nopGame) HandleAction(ctx context.Context, action model.PlayerAction) (model.ActionResult, error) {
	return model.ActionResult{
		Success: false,
		Error:   "room has no action handler",
	}, nil
}
