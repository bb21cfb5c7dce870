package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcoot/gameroom-go/model"
)

type stubSync struct {
	calls []string
	err   error
}

func (s *stubSync) BroadcastState(ctx context.Context, state *model.GameState) error {
	s.calls = append(s.calls, "state")
	return s.err
}

func (s *stubSync) SendToPlayer(ctx context.Context, playerID model.PlayerID, state *model.GameState) error {
	s.calls = append(s.calls, "send:"+string(playerID))
	return s.err
}

func (s *stubSync) BroadcastEvent(ctx context.Context, event model.EventType, payload any) error {
	s.calls = append(s.calls, "event:"+string(event))
	return s.err
}

func (s *stubSync) BroadcastCustomEvent(ctx context.Context, eventType string, payload any) error {
	s.calls = append(s.calls, "custom:"+eventType)
	return s.err
}

func TestMultiFansOutToEveryTarget(t *testing.T) {
	ctx := context.Background()
	first := &stubSync{}
	second := &stubSync{}
	multi := NewMulti(first, second)

	require.NoError(t, multi.BroadcastState(ctx, &model.GameState{RoomID: "R1"}))
	require.NoError(t, multi.SendToPlayer(ctx, "p1", &model.GameState{RoomID: "R1"}))
	require.NoError(t, multi.BroadcastEvent(ctx, model.EventPlayerJoined, nil))
	require.NoError(t, multi.BroadcastCustomEvent(ctx, "quiz:reveal", nil))

	want := []string{"state", "send:p1", "event:player:joined", "custom:quiz:reveal"}
	require.Equal(t, want, first.calls)
	require.Equal(t, want, second.calls)
}

func TestMultiReturnsFirstErrorAfterAttemptingAll(t *testing.T) {
	ctx := context.Background()
	first := &stubSync{err: errors.New("first down")}
	second := &stubSync{err: errors.New("second down")}
	multi := NewMulti(first, second)

	err := multi.BroadcastState(ctx, &model.GameState{RoomID: "R1"})
	require.EqualError(t, err, "first down")
	require.Equal(t, []string{"state"}, second.calls)
}

func TestMultiWithNoTargetsSucceeds(t *testing.T) {
	multi := NewMulti()
	require.NoError(t, multi.BroadcastState(context.Background(), &model.GameState{RoomID: "R1"}))
}
