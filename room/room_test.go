package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gameroom-go/dependencies/mocks"
	"github.com/mcoot/gameroom-go/internal/testutil"
	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/validate"
)

// journal records the order of observable effects across the test doubles
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// recordingGame implements Game, journalling every hook invocation. Each
// hook's return error is configurable; HandleAction records the action and
// defers to actionFn when set.
type recordingGame struct {
	journal  *journal
	joinErr  error
	leaveErr error
	startErr error
	endErr   error
	phaseErr error
	actionFn func(ctx context.Context, action model.PlayerAction) (model.ActionResult, error)
	actions  []model.PlayerAction
}

var _ Game = (*recordingGame)(nil)

func (g *recordingGame) OnPlayerJoin(ctx context.Context, player model.Player) error {
	g.journal.add("hook:join:" + string(player.ID))
	return g.joinErr
}

func (g *recordingGame) OnPlayerLeave(ctx context.Context, playerID model.PlayerID) error {
	g.journal.add("hook:leave:" + string(playerID))
	return g.leaveErr
}

func (g *recordingGame) OnGameStart(ctx context.Context) error {
	g.journal.add("hook:start")
	return g.startErr
}

func (g *recordingGame) OnGameEnd(ctx context.Context) error {
	g.journal.add("hook:end")
	return g.endErr
}

func (g *recordingGame) OnPhaseChange(ctx context.Context, transition model.PhaseTransition) error {
	g.journal.add("hook:phase:" + string(transition.To))
	return g.phaseErr
}

func (g *recordingGame) HandleAction(ctx context.Context, action model.PlayerAction) (model.ActionResult, error) {
	g.actions = append(g.actions, action)
	if g.actionFn != nil {
		return g.actionFn(ctx, action)
	}
	return model.ActionResult{Success: true}, nil
}

type syncCall struct {
	kind     string
	event    string
	playerID model.PlayerID
	state    *model.GameState
	payload  any
}

// recordingSync implements Synchronizer, journalling every call
type recordingSync struct {
	journal *journal
	err     error
	calls   []syncCall
}

var _ Synchronizer = (*recordingSync)(nil)

func (s *recordingSync) BroadcastState(ctx context.Context, state *model.GameState) error {
	s.journal.add("sync:state")
	s.calls = append(s.calls, syncCall{kind: "state", state: state})
	return s.err
}

func (s *recordingSync) SendToPlayer(ctx context.Context, playerID model.PlayerID, state *model.GameState) error {
	s.journal.add("sync:send:" + string(playerID))
	s.calls = append(s.calls, syncCall{kind: "send", playerID: playerID, state: state})
	return s.err
}

func (s *recordingSync) BroadcastEvent(ctx context.Context, event model.EventType, payload any) error {
	s.journal.add("sync:event:" + string(event))
	s.calls = append(s.calls, syncCall{kind: "event", event: string(event), payload: payload})
	return s.err
}

func (s *recordingSync) BroadcastCustomEvent(ctx context.Context, eventType string, payload any) error {
	s.journal.add("sync:custom:" + eventType)
	s.calls = append(s.calls, syncCall{kind: "custom", event: eventType, payload: payload})
	return s.err
}

func (s *recordingSync) callsOfKind(kind string) []syncCall {
	var out []syncCall
	for _, c := range s.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// captured collects the payloads a local subscription receives
type captured struct {
	mu       sync.Mutex
	payloads []any
}

func (c *captured) handler(ctx context.Context, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *captured) list() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.payloads...)
}

type RoomSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	game    *recordingGame
	sync    *recordingSync
	journal *journal
	room    *Room
	ctx     context.Context
}

func TestRoomSuite(t *testing.T) {
	suite.Run(t, new(RoomSuite))
}

func (s *RoomSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.journal = &journal{}
	s.game = &recordingGame{journal: s.journal}
	s.sync = &recordingSync{journal: s.journal}
	s.ctx = context.Background()

	var err error
	s.room, err = New("ROOM42", model.GameConfig{
		MinPlayers: 2,
		MaxPlayers: 3,
		Phases:     []model.Phase{"lobby", "round", "results"},
	}, s.game, s.clock, testutil.NopLogger())
	s.Require().NoError(err)
	s.room.AttachSynchronizer(s.sync)
}

func (s *RoomSuite) join(id string, name string) model.Player {
	member, err := s.room.Join(s.ctx, model.Player{ID: model.PlayerID(id), Name: name})
	s.Require().NoError(err)
	return *member
}

func (s *RoomSuite) startGame() {
	s.join("p1", "One")
	s.join("p2", "Two")
	s.Require().NoError(s.room.Start(s.ctx))
}

func (s *RoomSuite) validationCode(err error) validate.Code {
	var verr *validate.Error
	s.Require().ErrorAs(err, &verr)
	return verr.Code
}

func (s *RoomSuite) capture(eventType model.EventType) *captured {
	c := &captured{}
	s.room.Subscribe(eventType, c.handler)
	return c
}

func (s *RoomSuite) statePlayer(id string) *model.Player {
	for _, p := range s.room.State().Players {
		if p.ID == model.PlayerID(id) {
			return &p
		}
	}
	return nil
}

// New tests

func (s *RoomSuite) TestNewStartsWaitingInFirstPhase() {
	s.Equal(model.RoomID("ROOM42"), s.room.ID())
	s.Equal(model.StatusWaiting, s.room.Status())

	state := s.room.State()
	s.Equal(model.Phase("lobby"), state.Phase)
	s.Empty(state.Players)
	s.Nil(state.StartedAt)
	s.Nil(state.EndedAt)
}

func (s *RoomSuite) TestNewAppliesConfigDefaults() {
	s.Equal(30*time.Second, s.room.Config().DisconnectTimeout)
	s.False(s.room.Config().AllowJoinInProgress)
}

func (s *RoomSuite) TestNewRejectsInvalidConfig() {
	_, err := New("BAD", model.GameConfig{MinPlayers: 2, MaxPlayers: 1, Phases: []model.Phase{"lobby"}}, nil, s.clock, testutil.NopLogger())
	s.ErrorIs(err, model.ErrInvalidConfig)

	_, err = New("BAD", model.GameConfig{MinPlayers: 1, MaxPlayers: 4}, nil, s.clock, testutil.NopLogger())
	s.ErrorIs(err, model.ErrInvalidConfig)
}

// Join tests

func (s *RoomSuite) TestJoinSucceeds() {
	joined := s.capture(model.EventPlayerJoined)

	member, err := s.room.Join(s.ctx, model.Player{ID: "p1", Name: "One"})
	s.Require().NoError(err)

	s.True(member.IsHost)
	s.True(member.IsConnected)
	s.Equal(s.clock.Now(), member.JoinedAt)

	state := s.room.State()
	s.Len(state.Players, 1)
	s.Equal(model.PlayerID("p1"), state.Players[0].ID)

	payloads := joined.list()
	s.Require().Len(payloads, 1)
	payload, ok := payloads[0].(model.PlayerJoinedPayload)
	s.Require().True(ok)
	s.Equal(model.PlayerID("p1"), payload.Player.ID)
}

func (s *RoomSuite) TestJoinSecondPlayerIsNotHost() {
	s.join("p1", "One")
	member, err := s.room.Join(s.ctx, model.Player{ID: "p2", Name: "Two"})
	s.Require().NoError(err)
	s.False(member.IsHost)
}

func (s *RoomSuite) TestJoinStampsRoomOwnedFields() {
	s.join("p1", "One")

	// The caller does not get to pick these
	member, err := s.room.Join(s.ctx, model.Player{
		ID:          "p2",
		Name:        "Two",
		IsHost:      true,
		IsConnected: false,
		JoinedAt:    time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	s.False(member.IsHost)
	s.True(member.IsConnected)
	s.Equal(s.clock.Now(), member.JoinedAt)
}

func (s *RoomSuite) TestJoinFollowsOperationProtocol() {
	s.room.Subscribe(model.EventPlayerJoined, func(ctx context.Context, payload any) error {
		s.journal.add("local:player:joined")
		return nil
	})

	s.join("p1", "One")

	s.Equal([]string{
		"hook:join:p1",
		"local:player:joined",
		"sync:event:player:joined",
		"sync:state",
	}, s.journal.list())
}

func (s *RoomSuite) TestJoinFailsIfAlreadyJoined() {
	s.join("p1", "One")
	_, err := s.room.Join(s.ctx, model.Player{ID: "p1", Name: "Again"})
	s.Equal(validate.CodePlayerAlreadyJoined, s.validationCode(err))
	s.Len(s.room.State().Players, 1)
}

func (s *RoomSuite) TestJoinFailsWhenFull() {
	s.join("p1", "One")
	s.join("p2", "Two")
	s.join("p3", "Three")

	_, err := s.room.Join(s.ctx, model.Player{ID: "p4", Name: "Four"})
	s.Equal(validate.CodeGameFull, s.validationCode(err))
	s.Len(s.room.State().Players, 3)
}

func (s *RoomSuite) TestJoinFailsInProgress() {
	s.startGame()
	_, err := s.room.Join(s.ctx, model.Player{ID: "p3", Name: "Three"})
	s.Equal(validate.CodeGameInProgress, s.validationCode(err))
}

func (s *RoomSuite) TestJoinInProgressAllowedWhenConfigured() {
	rm, err := New("LATE42", model.GameConfig{
		MinPlayers:          1,
		MaxPlayers:          4,
		Phases:              []model.Phase{"lobby"},
		AllowJoinInProgress: true,
	}, nil, s.clock, testutil.NopLogger())
	s.Require().NoError(err)

	_, err = rm.Join(s.ctx, model.Player{ID: "p1", Name: "One"})
	s.Require().NoError(err)
	s.Require().NoError(rm.Start(s.ctx))

	_, err = rm.Join(s.ctx, model.Player{ID: "p2", Name: "Two"})
	s.Require().NoError(err)
	s.Len(rm.State().Players, 2)
}

func (s *RoomSuite) TestJoinHookFailureKeepsMutationSkipsAnnouncements() {
	joined := s.capture(model.EventPlayerJoined)
	s.game.joinErr = errors.New("table flipped")

	_, err := s.room.Join(s.ctx, model.Player{ID: "p1", Name: "One"})
	s.Require().Error(err)
	s.Contains(err.Error(), "player join hook")

	// The admission stands even though the operation reported failure
	s.Len(s.room.State().Players, 1)
	s.Empty(joined.list())
	s.Empty(s.sync.calls)
}

func (s *RoomSuite) TestJoinSynchronizerFailureKeepsMutation() {
	joined := s.capture(model.EventPlayerJoined)
	s.sync.err = errors.New("pipe broke")

	_, err := s.room.Join(s.ctx, model.Player{ID: "p1", Name: "One"})
	s.Require().Error(err)
	s.Contains(err.Error(), "synchronizer")

	s.Len(s.room.State().Players, 1)
	// Local subscribers already heard the event before the synchronizer failed
	s.Len(joined.list(), 1)
}

// Predicate tests

func (s *RoomSuite) TestCanPlayerJoinTracksCapacity() {
	s.True(s.room.CanPlayerJoin())
	s.join("p1", "One")
	s.join("p2", "Two")
	s.True(s.room.CanPlayerJoin())
	s.join("p3", "Three")
	s.False(s.room.CanPlayerJoin())

	s.Require().NoError(s.room.Leave(s.ctx, "p3"))
	s.True(s.room.CanPlayerJoin())
}

func (s *RoomSuite) TestCanStartTracksPlayerCountAndStatus() {
	s.False(s.room.CanStart())
	s.join("p1", "One")
	s.False(s.room.CanStart())
	s.join("p2", "Two")
	s.True(s.room.CanStart())

	s.Require().NoError(s.room.Start(s.ctx))
	s.False(s.room.CanStart())
}

// Leave tests

func (s *RoomSuite) TestLeaveSucceeds() {
	left := s.capture(model.EventPlayerLeft)
	s.join("p1", "One")
	s.join("p2", "Two")

	s.Require().NoError(s.room.Leave(s.ctx, "p2"))

	s.Len(s.room.State().Players, 1)
	payloads := left.list()
	s.Require().Len(payloads, 1)
	payload, ok := payloads[0].(model.PlayerLeftPayload)
	s.Require().True(ok)
	s.Equal(model.PlayerID("p2"), payload.PlayerID)
	s.Equal(model.LeaveReasonManual, payload.Reason)
}

func (s *RoomSuite) TestLeaveFailsIfUnknown() {
	s.join("p1", "One")
	err := s.room.Leave(s.ctx, "ghost")
	s.Equal(validate.CodePlayerNotFound, s.validationCode(err))
}

func (s *RoomSuite) TestLeaveTransfersHost() {
	s.join("p1", "One")
	s.join("p2", "Two")
	s.join("p3", "Three")

	s.Require().NoError(s.room.Leave(s.ctx, "p1"))

	s.Require().NotNil(s.statePlayer("p2"))
	s.True(s.statePlayer("p2").IsHost)
	s.False(s.statePlayer("p3").IsHost)
}

func (s *RoomSuite) TestLeaveHookFailureStillRemoves() {
	s.join("p1", "One")
	s.join("p2", "Two")
	s.game.leaveErr = errors.New("mid-round")

	err := s.room.Leave(s.ctx, "p2")
	s.Require().Error(err)
	s.Contains(err.Error(), "player leave hook")
	s.Len(s.room.State().Players, 1)
}

// Disconnect and timeout tests

func (s *RoomSuite) TestDisconnectMarksPlayerAndAnnounces() {
	dropped := s.capture(model.EventPlayerDisconnected)
	s.join("p1", "One")
	s.join("p2", "Two")

	s.Require().NoError(s.room.Disconnect(s.ctx, "p1"))

	s.False(s.statePlayer("p1").IsConnected)
	s.True(s.statePlayer("p2").IsConnected)
	payloads := dropped.list()
	s.Require().Len(payloads, 1)
	s.Equal(model.PlayerDisconnectedPayload{PlayerID: "p1"}, payloads[0])
}

func (s *RoomSuite) TestDisconnectFailsIfUnknown() {
	err := s.room.Disconnect(s.ctx, "ghost")
	s.Equal(validate.CodePlayerNotFound, s.validationCode(err))
}

func (s *RoomSuite) TestDisconnectedPlayerRemovedAfterTimeout() {
	left := s.capture(model.EventPlayerLeft)
	s.join("p1", "One")
	s.join("p2", "Two")
	s.Require().NoError(s.room.Disconnect(s.ctx, "p1"))

	s.clock.Advance(29 * time.Second)
	s.Len(s.room.State().Players, 2)

	s.clock.Advance(time.Second)
	s.Len(s.room.State().Players, 1)
	s.Nil(s.statePlayer("p1"))

	payloads := left.list()
	s.Require().Len(payloads, 1)
	payload, ok := payloads[0].(model.PlayerLeftPayload)
	s.Require().True(ok)
	s.Equal(model.PlayerID("p1"), payload.PlayerID)
	s.Equal(model.LeaveReasonTimeout, payload.Reason)
}

func (s *RoomSuite) TestReconnectCancelsRemoval() {
	s.join("p1", "One")
	s.join("p2", "Two")
	s.Require().NoError(s.room.Disconnect(s.ctx, "p1"))
	s.Require().NoError(s.room.Reconnect(s.ctx, "p1"))

	s.clock.Advance(time.Hour)

	s.Len(s.room.State().Players, 2)
	s.True(s.statePlayer("p1").IsConnected)
}

func (s *RoomSuite) TestReconnectSendsStateToPlayerOnly() {
	s.join("p1", "One")
	s.join("p2", "Two")
	s.Require().NoError(s.room.Disconnect(s.ctx, "p1"))
	s.journal.clear()
	s.sync.calls = nil

	reconnected := s.capture(model.EventPlayerReconnected)
	s.Require().NoError(s.room.Reconnect(s.ctx, "p1"))

	s.Require().Len(reconnected.list(), 1)
	s.Equal(model.PlayerReconnectedPayload{PlayerID: "p1"}, reconnected.list()[0])

	// The snapshot goes directly to the returning player, not as a broadcast
	sends := s.sync.callsOfKind("send")
	s.Require().Len(sends, 1)
	s.Equal(model.PlayerID("p1"), sends[0].playerID)
	s.True(sends[0].state.Players[0].IsConnected)
	s.Empty(s.sync.callsOfKind("state"))
}

func (s *RoomSuite) TestRepeatDisconnectResetsGracePeriod() {
	s.join("p1", "One")
	s.join("p2", "Two")
	s.Require().NoError(s.room.Disconnect(s.ctx, "p1"))

	s.clock.Advance(20 * time.Second)
	s.Require().NoError(s.room.Disconnect(s.ctx, "p1"))

	// 40s after the first disconnect, but only 20s after the reset
	s.clock.Advance(20 * time.Second)
	s.Len(s.room.State().Players, 2)

	s.clock.Advance(10 * time.Second)
	s.Len(s.room.State().Players, 1)
}

func (s *RoomSuite) TestTimeoutTransfersHost() {
	s.join("p1", "One")
	s.join("p2", "Two")
	s.Require().NoError(s.room.Disconnect(s.ctx, "p1"))

	s.clock.Advance(30 * time.Second)

	s.Require().NotNil(s.statePlayer("p2"))
	s.True(s.statePlayer("p2").IsHost)
}

// Start and end tests

func (s *RoomSuite) TestStartSucceeds() {
	started := s.capture(model.EventGameStarted)
	s.join("p1", "One")
	s.join("p2", "Two")
	s.journal.clear()

	s.room.Subscribe(model.EventGameStarted, func(ctx context.Context, payload any) error {
		s.journal.add("local:game:started")
		return nil
	})
	s.Require().NoError(s.room.Start(s.ctx))

	s.Equal(model.StatusPlaying, s.room.Status())
	state := s.room.State()
	s.Require().NotNil(state.StartedAt)
	s.Equal(s.clock.Now(), *state.StartedAt)

	s.Require().Len(started.list(), 1)
	s.Equal(model.GameStartedPayload{StartedAt: s.clock.Now()}, started.list()[0])

	s.Equal([]string{
		"hook:start",
		"local:game:started",
		"sync:event:game:started",
		"sync:state",
	}, s.journal.list())
}

func (s *RoomSuite) TestStartFailsIfAlreadyStarted() {
	s.startGame()
	err := s.room.Start(s.ctx)
	s.Equal(validate.CodeGameAlreadyStarted, s.validationCode(err))
}

func (s *RoomSuite) TestStartFailsWithoutEnoughPlayers() {
	s.join("p1", "One")
	err := s.room.Start(s.ctx)
	s.Equal(validate.CodeNotEnoughPlayers, s.validationCode(err))
	s.Equal(model.StatusWaiting, s.room.Status())
}

func (s *RoomSuite) TestStartHookFailureKeepsGameStarted() {
	s.join("p1", "One")
	s.join("p2", "Two")
	s.game.startErr = errors.New("deck missing")

	err := s.room.Start(s.ctx)
	s.Require().Error(err)
	s.Contains(err.Error(), "game start hook")

	s.Equal(model.StatusPlaying, s.room.Status())
	s.NotNil(s.room.State().StartedAt)
}

func (s *RoomSuite) TestEndSucceeds() {
	ended := s.capture(model.EventGameEnded)
	s.startGame()

	s.Require().NoError(s.room.End(s.ctx))

	s.Equal(model.StatusEnded, s.room.Status())
	state := s.room.State()
	s.Require().NotNil(state.EndedAt)
	s.Equal(s.clock.Now(), *state.EndedAt)
	s.Require().Len(ended.list(), 1)
	s.Equal(model.GameEndedPayload{EndedAt: s.clock.Now()}, ended.list()[0])
}

func (s *RoomSuite) TestEndFailsBeforeStart() {
	s.join("p1", "One")
	err := s.room.End(s.ctx)
	s.Equal(validate.CodeGameNotStarted, s.validationCode(err))
}

func (s *RoomSuite) TestEndFailsIfAlreadyEnded() {
	s.startGame()
	s.Require().NoError(s.room.End(s.ctx))
	err := s.room.End(s.ctx)
	s.Equal(validate.CodeGameAlreadyEnded, s.validationCode(err))
}

// Phase transition tests

func (s *RoomSuite) TestTransitionPhaseSucceeds() {
	changed := s.capture(model.EventPhaseChanged)
	s.startGame()

	s.Require().NoError(s.room.TransitionPhase(s.ctx, "round"))

	s.Equal(model.Phase("round"), s.room.State().Phase)
	payloads := changed.list()
	s.Require().Len(payloads, 1)
	transition, ok := payloads[0].(model.PhaseTransition)
	s.Require().True(ok)
	s.Equal(model.Phase("lobby"), transition.From)
	s.Equal(model.Phase("round"), transition.To)
	s.Equal(s.clock.Now(), transition.Timestamp)
}

func (s *RoomSuite) TestTransitionPhaseAllowsSkipsAndBackward() {
	s.startGame()

	s.Require().NoError(s.room.TransitionPhase(s.ctx, "results"))
	s.Equal(model.Phase("results"), s.room.State().Phase)

	s.Require().NoError(s.room.TransitionPhase(s.ctx, "lobby"))
	s.Equal(model.Phase("lobby"), s.room.State().Phase)
}

func (s *RoomSuite) TestTransitionPhaseFailsIfSame() {
	s.startGame()
	err := s.room.TransitionPhase(s.ctx, "lobby")
	s.Equal(validate.CodeSamePhase, s.validationCode(err))
}

func (s *RoomSuite) TestTransitionPhaseFailsIfUnknown() {
	s.startGame()
	err := s.room.TransitionPhase(s.ctx, "intermission")
	s.Equal(validate.CodeInvalidPhase, s.validationCode(err))
	s.Equal(model.Phase("lobby"), s.room.State().Phase)
}

func (s *RoomSuite) TestTransitionPhaseAllowedBeforeStart() {
	s.join("p1", "One")
	s.Require().NoError(s.room.TransitionPhase(s.ctx, "round"))
	s.Equal(model.Phase("round"), s.room.State().Phase)
}

// Metadata tests

func (s *RoomSuite) TestUpdateMetadataReplacesWholesale() {
	s.join("p1", "One")
	s.Require().NoError(s.room.UpdateMetadata(s.ctx, map[string]any{"round": 1, "topic": "films"}))
	s.Require().NoError(s.room.UpdateMetadata(s.ctx, map[string]any{"round": 2}))

	state := s.room.State()
	s.Equal(map[string]any{"round": 2}, state.Metadata)

	// Pure state pushes, no lifecycle events beyond the join
	s.Len(s.sync.callsOfKind("event"), 1)
	states := s.sync.callsOfKind("state")
	s.Equal(map[string]any{"round": 2}, states[len(states)-1].state.Metadata)
}

// Action tests

func (s *RoomSuite) TestHandleActionRoutesToGame() {
	s.startGame()

	result, err := s.room.HandleAction(s.ctx, model.PlayerAction{
		PlayerID: "p1",
		Type:     "answer",
		Payload:  "42",
	})
	s.Require().NoError(err)
	s.True(result.Success)

	s.Require().Len(s.game.actions, 1)
	s.Equal(model.PlayerID("p1"), s.game.actions[0].PlayerID)
	s.Equal("answer", s.game.actions[0].Type)
	s.Equal("42", s.game.actions[0].Payload)
}

func (s *RoomSuite) TestHandleActionStampsMissingTimestamp() {
	s.startGame()

	_, err := s.room.HandleAction(s.ctx, model.PlayerAction{PlayerID: "p1", Type: "answer"})
	s.Require().NoError(err)
	s.Equal(s.clock.Now(), s.game.actions[0].Timestamp)

	provided := time.Date(2024, 1, 1, 11, 59, 0, 0, time.UTC)
	_, err = s.room.HandleAction(s.ctx, model.PlayerAction{PlayerID: "p1", Type: "answer", Timestamp: provided})
	s.Require().NoError(err)
	s.Equal(provided, s.game.actions[1].Timestamp)
}

func (s *RoomSuite) TestHandleActionFailsIfUnknownPlayer() {
	s.startGame()
	_, err := s.room.HandleAction(s.ctx, model.PlayerAction{PlayerID: "ghost", Type: "answer"})
	s.Equal(validate.CodePlayerNotFound, s.validationCode(err))
	s.Empty(s.game.actions)
}

func (s *RoomSuite) TestHandleActionMayReenterRoom() {
	s.startGame()
	s.game.actionFn = func(ctx context.Context, action model.PlayerAction) (model.ActionResult, error) {
		if err := s.room.TransitionPhase(ctx, "round"); err != nil {
			return model.ActionResult{}, err
		}
		return model.ActionResult{Success: true}, nil
	}

	result, err := s.room.HandleAction(s.ctx, model.PlayerAction{PlayerID: "p1", Type: "advance"})
	s.Require().NoError(err)
	s.True(result.Success)
	s.Equal(model.Phase("round"), s.room.State().Phase)
}

func (s *RoomSuite) TestHandleActionWithoutGame() {
	rm, err := New("NOGAME", model.GameConfig{
		MinPlayers: 1,
		MaxPlayers: 4,
		Phases:     []model.Phase{"lobby"},
	}, nil, s.clock, testutil.NopLogger())
	s.Require().NoError(err)
	_, err = rm.Join(s.ctx, model.Player{ID: "p1", Name: "One"})
	s.Require().NoError(err)

	result, err := rm.HandleAction(s.ctx, model.PlayerAction{PlayerID: "p1", Type: "answer"})
	s.Require().NoError(err)
	s.False(result.Success)
	s.Equal("room has no action handler", result.Error)
}

// Custom broadcast tests

func (s *RoomSuite) TestBroadcastCustomGoesThroughSynchronizer() {
	s.Require().NoError(s.room.BroadcastCustom(s.ctx, "quiz:reveal", map[string]any{"answer": "42"}))

	customs := s.sync.callsOfKind("custom")
	s.Require().Len(customs, 1)
	s.Equal("quiz:reveal", customs[0].event)
}

func (s *RoomSuite) TestBroadcastCustomWithoutSynchronizer() {
	s.room.AttachSynchronizer(nil)
	s.Require().NoError(s.room.BroadcastCustom(s.ctx, "quiz:reveal", nil))
}

// Subscription tests

func (s *RoomSuite) TestSubscribeOnceFiresOnce() {
	c := &captured{}
	s.room.SubscribeOnce(model.EventPlayerJoined, c.handler)

	s.join("p1", "One")
	s.join("p2", "Two")

	s.Len(c.list(), 1)
}

func (s *RoomSuite) TestUnsubscribeStopsDelivery() {
	c := &captured{}
	sub := s.room.Subscribe(model.EventPlayerJoined, c.handler)

	s.join("p1", "One")
	sub.Unsubscribe()
	s.join("p2", "Two")

	s.Len(c.list(), 1)
}

func (s *RoomSuite) TestStateSnapshotsAreIndependent() {
	s.join("p1", "One")

	snapshot := s.room.State()
	snapshot.Players[0].Name = "Mangled"
	snapshot.Phase = "bogus"

	s.Equal("One", s.room.State().Players[0].Name)
	s.Equal(model.Phase("lobby"), s.room.State().Phase)

	// The synchronizer gets clones too
	states := s.sync.callsOfKind("state")
	s.Require().NotEmpty(states)
	states[0].state.Players[0].Name = "Mangled"
	s.Equal("One", s.room.State().Players[0].Name)
}

// Close tests

func (s *RoomSuite) TestCloseAnnouncesThenDropsSubscribers() {
	closed := s.capture(model.EventRoomClosed)
	joined := s.capture(model.EventPlayerJoined)

	s.Require().NoError(s.room.Close(s.ctx))

	s.Equal(model.StatusClosed, s.room.Status())
	s.Require().Len(closed.list(), 1)
	s.Equal(model.RoomClosedPayload{RoomID: "ROOM42"}, closed.list()[0])

	s.Zero(s.room.emitter.ListenerCount(model.EventRoomClosed))
	s.Zero(s.room.emitter.ListenerCount(model.EventPlayerJoined))
	s.Empty(joined.list())
}

func (s *RoomSuite) TestCloseCancelsPendingRemovals() {
	left := s.capture(model.EventPlayerLeft)
	s.join("p1", "One")
	s.join("p2", "Two")
	s.Require().NoError(s.room.Disconnect(s.ctx, "p1"))
	s.Require().NotZero(s.clock.TimerCount())

	s.Require().NoError(s.room.Close(s.ctx))
	s.Zero(s.clock.TimerCount())

	s.clock.Advance(time.Hour)
	s.Empty(left.list())
	s.Len(s.room.State().Players, 2)
}

func (s *RoomSuite) TestCloseTwiceFails() {
	s.Require().NoError(s.room.Close(s.ctx))
	s.ErrorIs(s.room.Close(s.ctx), model.ErrRoomClosed)
}

func (s *RoomSuite) TestOperationsFailAfterClose() {
	s.join("p1", "One")
	s.Require().NoError(s.room.Close(s.ctx))

	ops := map[string]func() error{
		"join": func() error {
			_, err := s.room.Join(s.ctx, model.Player{ID: "p9", Name: "Nine"})
			return err
		},
		"leave":      func() error { return s.room.Leave(s.ctx, "p1") },
		"disconnect": func() error { return s.room.Disconnect(s.ctx, "p1") },
		"reconnect":  func() error { return s.room.Reconnect(s.ctx, "p1") },
		"start":      func() error { return s.room.Start(s.ctx) },
		"end":        func() error { return s.room.End(s.ctx) },
		"transition": func() error { return s.room.TransitionPhase(s.ctx, "round") },
		"metadata":   func() error { return s.room.UpdateMetadata(s.ctx, map[string]any{"k": "v"}) },
		"action": func() error {
			_, err := s.room.HandleAction(s.ctx, model.PlayerAction{PlayerID: "p1", Type: "answer"})
			return err
		},
		"custom": func() error { return s.room.BroadcastCustom(s.ctx, "quiz:reveal", nil) },
	}
	for name, op := range ops {
		s.ErrorIs(op(), model.ErrRoomClosed, name)
	}
}

// Rooms run fine with no synchronizer attached

func (s *RoomSuite) TestRoomRunsWithoutSynchronizer() {
	s.room.AttachSynchronizer(nil)

	s.join("p1", "One")
	s.join("p2", "Two")
	s.Require().NoError(s.room.Start(s.ctx))
	s.Require().NoError(s.room.TransitionPhase(s.ctx, "round"))
	s.Require().NoError(s.room.Disconnect(s.ctx, "p1"))
	s.Require().NoError(s.room.Reconnect(s.ctx, "p1"))
	s.Require().NoError(s.room.End(s.ctx))
	s.Require().NoError(s.room.Close(s.ctx))
}
