package syncer

import (
	"context"

	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/room"
)

// Multi fans every announcement out to a list of synchronizers, typically a
// local websocket hub plus a cross-process broker. Each call attempts every
// target even after a failure and returns the first error.
type Multi struct {
	targets []room.Synchronizer
}

// NewMulti combines synchronizers into one
func NewMulti(targets ...room.Synchronizer) *Multi {
	return &Multi{targets: targets}
}

// Ensure Multi implements the synchronizer interface
var _ room.Synchronizer = (*Multi)(nil)

func (m *Multi) BroadcastState(ctx context.Context, state *model.GameState) error {
	return m.each(func(s room.Synchronizer) error {
		return s.BroadcastState(ctx, state)
	})
}

func (m *Multi) SendToPlayer(ctx context.Context, playerID model.PlayerID, state *model.GameState) error {
	return m.each(func(s room.Synchronizer) error {
		return s.SendToPlayer(ctx, playerID, state)
	})
}

func (m *Multi) BroadcastEvent(ctx context.Context, event model.EventType, payload any) error {
	return m.each(func(s room.Synchronizer) error {
		return s.BroadcastEvent(ctx, event, payload)
	})
}

func (m *Multi) BroadcastCustomEvent(ctx context.Context, eventType string, payload any) error {
	return m.each(func(s room.Synchronizer) error {
		return s.BroadcastCustomEvent(ctx, eventType, payload)
	})
}

func (m *Multi) each(fn func(room.Synchronizer) error) error {
	var firstErr error
	for _, target := range m.targets {
		if err := fn(target); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
