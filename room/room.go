// Package room implements the orchestrator at the centre of the framework: a
// single game session composing validation, connection tracking, state
// merging and event notification behind one operation surface.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/gameroom-go/conntrack"
	"github.com/mcoot/gameroom-go/dependencies/clock"
	"github.com/mcoot/gameroom-go/event"
	"github.com/mcoot/gameroom-go/metrics"
	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/validate"
)

// Room orchestrates one game session. Every operation follows the same
// protocol: validate, apply the state mutation, run the game's lifecycle
// hook, emit the event to local subscribers and the synchronizer, then push
// the updated state to the synchronizer. A validation failure stops before
// any mutation; a later failure (hook, handler, or synchronizer) surfaces as
// the operation's error while the already-applied mutation stands.
//
// Operations are serialized by an internal lock, so a disconnect timeout
// firing mid-join takes its turn like any caller.
type Room struct {
	mu      sync.Mutex
	id      model.RoomID
	cfg     model.GameConfig
	game    Game
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	status  model.RoomStatus
	state   *model.GameState
	emitter *event.Emitter
	tracker *conntrack.Tracker
	sync    Synchronizer
}

// New creates a room in the waiting state, with its phase set to the first
// configured phase. A nil game gets no-op hooks and an action handler that
// rejects everything.
func New(id model.RoomID, cfg model.GameConfig, game Game, clk clock.Clock, logger *slog.Logger) (*Room, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if game == nil {
		game = nopGame{}
	}
	roomLogger := logger.With(
		slog.String("component", "room"),
		slog.String("room_id", string(id)),
	)
	return &Room{
		id:      id,
		cfg:     cfg,
		game:    game,
		clock:   clk,
		logger:  roomLogger,
		status:  model.StatusWaiting,
		emitter: event.New(),
		tracker: conntrack.New(cfg.DisconnectTimeout, clk, logger.With(slog.String("room_id", string(id)))),
		state: &model.GameState{
			RoomID:  id,
			Phase:   cfg.Phases[0],
			Players: []model.Player{},
		},
	}, nil
}

// ID returns the room's identifier
func (r *Room) ID() model.RoomID {
	return r.id
}

// Config returns the room's immutable config
func (r *Room) Config() model.GameConfig {
	return r.cfg
}

// Status returns the room's lifecycle status
func (r *Room) Status() model.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// State returns an independent snapshot of the current state
func (r *Room) State() *model.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// AttachSynchronizer connects the transport the room announces changes to.
// Passing nil detaches, after which sync steps are skipped.
func (r *Room) AttachSynchronizer(s Synchronizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sync = s
}

// SetMetrics wires the collectors the room records activity on
func (r *Room) SetMetrics(m *metrics.Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Subscribe registers a local handler for the given event type. Handlers
// run while the room's operation lock is held, under the same restriction as
// lifecycle hooks: they must not call back into the Room.
func (r *Room) Subscribe(eventType model.EventType, fn event.Handler) *event.Subscription {
	return r.emitter.Subscribe(eventType, fn)
}

// SubscribeOnce registers a local handler that runs at most once, under the
// same restrictions as Subscribe
func (r *Room) SubscribeOnce(eventType model.EventType, fn event.Handler) *event.Subscription {
	return r.emitter.SubscribeOnce(eventType, fn)
}

// CanPlayerJoin reports whether the room currently has space for another
// player. It is the validator's own capacity check, so it cannot drift from
// what Join enforces.
func (r *Room) CanPlayerJoin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status != model.StatusClosed && validate.JoinCapacity(r.state, r.cfg) == nil
}

// CanStart reports whether the game could start right now
func (r *Room) CanStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status != model.StatusClosed && validate.Start(r.state, r.cfg) == nil
}

// Join admits a player. The caller supplies the identity (id, name,
// metadata); the room owns the host flag, connection flag and join
// timestamp. The first player to join becomes host.
func (r *Room) Join(ctx context.Context, player model.Player) (joined *model.Player, err error) {
	defer r.trackFailure("join", &err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusClosed {
		return nil, model.ErrRoomClosed
	}
	if verr := validate.Join(r.state, r.cfg, player.ID); verr != nil {
		return nil, verr
	}

	member := player.Clone()
	member.IsHost = len(r.state.Players) == 0
	member.IsConnected = true
	member.JoinedAt = r.clock.Now()

	players := make([]model.Player, 0, len(r.state.Players)+1)
	players = append(players, r.state.Players...)
	players = append(players, member)
	r.state = r.state.Merge(model.StatePatch{Players: players})
	if err := r.tracker.Add(member.ID); err != nil {
		return nil, fmt.Errorf("tracking joined player: %w", err)
	}
	r.metrics.PlayerJoined()

	if err := r.game.OnPlayerJoin(ctx, member); err != nil {
		return nil, fmt.Errorf("player join hook: %w", err)
	}
	if err := r.publishLocked(ctx, model.EventPlayerJoined, model.PlayerJoinedPayload{Player: member}); err != nil {
		return nil, err
	}
	if err := r.pushStateLocked(ctx); err != nil {
		return nil, err
	}

	r.logger.Info("player joined",
		slog.String("player_id", string(member.ID)),
		slog.Bool("is_host", member.IsHost),
		slog.Int("player_count", len(r.state.Players)))
	return &member, nil
}

// Leave removes a player at their own request
func (r *Room) Leave(ctx context.Context, id model.PlayerID) (err error) {
	defer r.trackFailure("leave", &err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusClosed {
		return model.ErrRoomClosed
	}
	if verr := validate.PlayerExists(r.state, id); verr != nil {
		return verr
	}
	if err := r.removePlayerLocked(ctx, id, model.LeaveReasonManual); err != nil {
		return err
	}
	r.logger.Info("player left",
		slog.String("player_id", string(id)),
		slog.Int("player_count", len(r.state.Players)))
	return nil
}

// Disconnect marks a player as dropped and starts their removal grace
// period. Disconnecting an already-disconnected player resets the period.
func (r *Room) Disconnect(ctx context.Context, id model.PlayerID) (err error) {
	defer r.trackFailure("disconnect", &err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusClosed {
		return model.ErrRoomClosed
	}
	if verr := validate.PlayerExists(r.state, id); verr != nil {
		return verr
	}

	wasConnected := r.tracker.IsConnected(id)
	if err := r.tracker.Disconnect(id, r.handlePlayerTimeout); err != nil {
		return fmt.Errorf("tracking disconnect: %w", err)
	}
	r.setPlayerConnectedLocked(id, false)
	if wasConnected {
		r.metrics.PlayerDisconnected()
	}

	if err := r.publishLocked(ctx, model.EventPlayerDisconnected, model.PlayerDisconnectedPayload{PlayerID: id}); err != nil {
		return err
	}
	if err := r.pushStateLocked(ctx); err != nil {
		return err
	}

	r.logger.Info("player disconnected", slog.String("player_id", string(id)))
	return nil
}

// Reconnect marks a dropped player as back and cancels their pending
// removal. The new state goes to the reconnecting player directly rather
// than as a broadcast.
func (r *Room) Reconnect(ctx context.Context, id model.PlayerID) (err error) {
	defer r.trackFailure("reconnect", &err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusClosed {
		return model.ErrRoomClosed
	}
	if verr := validate.PlayerExists(r.state, id); verr != nil {
		return verr
	}

	wasConnected := r.tracker.IsConnected(id)
	if err := r.tracker.Reconnect(id); err != nil {
		return fmt.Errorf("tracking reconnect: %w", err)
	}
	r.setPlayerConnectedLocked(id, true)
	if !wasConnected {
		r.metrics.PlayerReconnected()
	}

	if err := r.publishLocked(ctx, model.EventPlayerReconnected, model.PlayerReconnectedPayload{PlayerID: id}); err != nil {
		return err
	}
	if r.sync != nil {
		if err := r.sync.SendToPlayer(ctx, id, r.state.Clone()); err != nil {
			return fmt.Errorf("synchronizer send to player: %w", err)
		}
	}

	r.logger.Info("player reconnected", slog.String("player_id", string(id)))
	return nil
}

// Start begins the game
func (r *Room) Start(ctx context.Context) (err error) {
	defer r.trackFailure("start", &err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusClosed {
		return model.ErrRoomClosed
	}
	if verr := validate.Start(r.state, r.cfg); verr != nil {
		return verr
	}

	now := r.clock.Now()
	r.state = r.state.Merge(model.StatePatch{StartedAt: &now})
	r.status = model.StatusPlaying

	if err := r.game.OnGameStart(ctx); err != nil {
		return fmt.Errorf("game start hook: %w", err)
	}
	if err := r.publishLocked(ctx, model.EventGameStarted, model.GameStartedPayload{StartedAt: now}); err != nil {
		return err
	}
	if err := r.pushStateLocked(ctx); err != nil {
		return err
	}

	r.logger.Info("game started", slog.Int("player_count", len(r.state.Players)))
	return nil
}

// End finishes the game; the room stays open for reads until closed
func (r *Room) End(ctx context.Context) (err error) {
	defer r.trackFailure("end", &err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusClosed {
		return model.ErrRoomClosed
	}
	if verr := validate.End(r.state); verr != nil {
		return verr
	}

	now := r.clock.Now()
	r.state = r.state.Merge(model.StatePatch{EndedAt: &now})
	r.status = model.StatusEnded

	if err := r.game.OnGameEnd(ctx); err != nil {
		return fmt.Errorf("game end hook: %w", err)
	}
	if err := r.publishLocked(ctx, model.EventGameEnded, model.GameEndedPayload{EndedAt: now}); err != nil {
		return err
	}
	if err := r.pushStateLocked(ctx); err != nil {
		return err
	}

	r.logger.Info("game ended")
	return nil
}

// TransitionPhase moves the game to another configured phase. Skips and
// backward moves are allowed; the target just has to be a configured phase
// different from the current one.
func (r *Room) TransitionPhase(ctx context.Context, to model.Phase) (err error) {
	defer r.trackFailure("transition_phase", &err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusClosed {
		return model.ErrRoomClosed
	}
	if verr := validate.PhaseTransition(r.state, r.cfg, to); verr != nil {
		return verr
	}

	transition := model.PhaseTransition{
		From:      r.state.Phase,
		To:        to,
		Timestamp: r.clock.Now(),
	}
	r.state = r.state.Merge(model.StatePatch{Phase: &to})

	if err := r.game.OnPhaseChange(ctx, transition); err != nil {
		return fmt.Errorf("phase change hook: %w", err)
	}
	if err := r.publishLocked(ctx, model.EventPhaseChanged, transition); err != nil {
		return err
	}
	if err := r.pushStateLocked(ctx); err != nil {
		return err
	}

	r.logger.Info("phase changed",
		slog.String("from", string(transition.From)),
		slog.String("to", string(transition.To)))
	return nil
}

// UpdateMetadata replaces the state's metadata map and broadcasts the new
// state. Games use this to publish shared data (scores, round info) without
// a lifecycle event.
func (r *Room) UpdateMetadata(ctx context.Context, metadata map[string]any) (err error) {
	defer r.trackFailure("update_metadata", &err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusClosed {
		return model.ErrRoomClosed
	}
	r.state = r.state.Merge(model.StatePatch{Metadata: metadata})
	return r.pushStateLocked(ctx)
}

// HandleAction routes a player action to the game. The room checks only
// that the room is open and the player is a member; the action's meaning is
// entirely the game's. Runs outside the operation lock so the game may call
// back into the room.
func (r *Room) HandleAction(ctx context.Context, action model.PlayerAction) (model.ActionResult, error) {
	r.mu.Lock()
	if r.status == model.StatusClosed {
		r.mu.Unlock()
		return model.ActionResult{}, model.ErrRoomClosed
	}
	if verr := validate.PlayerExists(r.state, action.PlayerID); verr != nil {
		r.mu.Unlock()
		return model.ActionResult{}, verr
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = r.clock.Now()
	}
	game := r.game
	r.mu.Unlock()

	return game.HandleAction(ctx, action)
}

// BroadcastCustom pushes a game-defined event through the synchronizer.
// With no synchronizer attached it is a successful no-op.
func (r *Room) BroadcastCustom(ctx context.Context, eventType string, payload any) error {
	r.mu.Lock()
	if r.status == model.StatusClosed {
		r.mu.Unlock()
		return model.ErrRoomClosed
	}
	s := r.sync
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.BroadcastCustomEvent(ctx, eventType, payload)
}

// Close tears the room down: every pending disconnect timer is cancelled,
// the status becomes closed, the closed event goes out, and all local
// subscriptions are dropped so no later operation can reach an old handler.
// Every operation on a closed room fails with model.ErrRoomClosed.
func (r *Room) Close(ctx context.Context) (err error) {
	defer r.trackFailure("close", &err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusClosed {
		return model.ErrRoomClosed
	}

	r.tracker.Cleanup()
	r.status = model.StatusClosed
	r.metrics.RoomClosed()

	// Subscriptions are dropped even when the closed event fails to send
	defer r.emitter.RemoveAll()

	if err := r.publishLocked(ctx, model.EventRoomClosed, model.RoomClosedPayload{RoomID: r.id}); err != nil {
		return err
	}
	r.logger.Info("room closed")
	return nil
}

// handlePlayerTimeout runs when a player's disconnect grace period expires.
// Removal is unconditional once it wins the race against reconnect and
// manual leave; hook or broadcast failures are logged, never blocking.
func (r *Room) handlePlayerTimeout(id model.PlayerID) {
	ctx := context.Background()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == model.StatusClosed {
		return
	}
	if verr := validate.PlayerExists(r.state, id); verr != nil {
		// Already removed by a manual leave
		return
	}
	if r.tracker.IsConnected(id) {
		// Reconnected while the timer was in flight
		return
	}

	r.metrics.TimeoutFired()
	if err := r.removePlayerLocked(ctx, id, model.LeaveReasonTimeout); err != nil {
		r.logger.Error("timed-out player removal reported an error",
			slog.String("player_id", string(id)),
			slog.String("error", err.Error()))
		return
	}
	r.logger.Info("player removed after disconnect timeout",
		slog.String("player_id", string(id)))
}

// removePlayerLocked applies the shared removal path for manual leaves and
// timeouts: drop the tracker record, take the player out of the state,
// transfer host if needed, then run hook, event and state broadcast.
func (r *Room) removePlayerLocked(ctx context.Context, id model.PlayerID, reason model.LeaveReason) error {
	wasConnected := r.tracker.IsConnected(id)
	r.tracker.Remove(id)

	var wasHost bool
	players := make([]model.Player, 0, len(r.state.Players))
	for _, p := range r.state.Players {
		if p.ID == id {
			wasHost = p.IsHost
			continue
		}
		players = append(players, p)
	}
	if wasHost && len(players) > 0 {
		// Host passes to the longest-joined remaining player
		players[0].IsHost = true
	}
	r.state = r.state.Merge(model.StatePatch{Players: players})
	r.metrics.PlayerLeft(string(reason), wasConnected)

	if err := r.game.OnPlayerLeave(ctx, id); err != nil {
		return fmt.Errorf("player leave hook: %w", err)
	}
	payload := model.PlayerLeftPayload{PlayerID: id, Reason: reason}
	if err := r.publishLocked(ctx, model.EventPlayerLeft, payload); err != nil {
		return err
	}
	return r.pushStateLocked(ctx)
}

// publishLocked emits an event locally and to the synchronizer
func (r *Room) publishLocked(ctx context.Context, eventType model.EventType, payload any) error {
	if err := r.emitter.Emit(ctx, eventType, payload); err != nil {
		return fmt.Errorf("emit %s: %w", eventType, err)
	}
	r.metrics.EventEmitted(string(eventType))
	if r.sync != nil {
		if err := r.sync.BroadcastEvent(ctx, eventType, payload); err != nil {
			return fmt.Errorf("synchronizer event %s: %w", eventType, err)
		}
	}
	return nil
}

// pushStateLocked broadcasts the current state snapshot
func (r *Room) pushStateLocked(ctx context.Context) error {
	if r.sync == nil {
		return nil
	}
	if err := r.sync.BroadcastState(ctx, r.state.Clone()); err != nil {
		return fmt.Errorf("synchronizer state broadcast: %w", err)
	}
	return nil
}

// setPlayerConnectedLocked rewrites the players list with one connection
// flag flipped
func (r *Room) setPlayerConnectedLocked(id model.PlayerID, connected bool) {
	players := make([]model.Player, len(r.state.Players))
	copy(players, r.state.Players)
	for i := range players {
		if players[i].ID == id {
			players[i].IsConnected = connected
			break
		}
	}
	r.state = r.state.Merge(model.StatePatch{Players: players})
}

// trackFailure records a failed operation on the metrics collectors
func (r *Room) trackFailure(operation string, err *error) {
	if *err != nil {
		r.metrics.OperationFailed(operation)
	}
}

// Interface is the full operation surface of a room, for callers that want
// to depend on an abstraction
type Interface interface {
	ID() model.RoomID
	Config() model.GameConfig
	Status() model.RoomStatus
	State() *model.GameState
	AttachSynchronizer(s Synchronizer)
	Subscribe(eventType model.EventType, fn event.Handler) *event.Subscription
	SubscribeOnce(eventType model.EventType, fn event.Handler) *event.Subscription
	CanPlayerJoin() bool
	CanStart() bool
	Join(ctx context.Context, player model.Player) (*model.Player, error)
	Leave(ctx context.Context, id model.PlayerID) error
	Disconnect(ctx context.Context, id model.PlayerID) error
	Reconnect(ctx context.Context, id model.PlayerID) error
	Start(ctx context.Context) error
	End(ctx context.Context) error
	TransitionPhase(ctx context.Context, to model.Phase) error
	UpdateMetadata(ctx context.Context, metadata map[string]any) error
	HandleAction(ctx context.Context, action model.PlayerAction) (model.ActionResult, error)
	BroadcastCustom(ctx context.Context, eventType string, payload any) error
	Close(ctx context.Context) error
}

// Ensure Room implements Interface
var _ Interface = (*Room)(nil)
