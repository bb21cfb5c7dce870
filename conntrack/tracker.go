// Package conntrack tracks per-player liveness for a room: whether each
// player is connected, and the single pending removal timer for a player who
// has dropped. It owns the timers but not the removal itself — the room
// supplies the callback that fires when a player's grace period expires.
package conntrack

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/gameroom-go/dependencies/clock"
	"github.com/mcoot/gameroom-go/model"
)

// Connection is a snapshot of one player's tracked liveness
type Connection struct {
	PlayerID       model.PlayerID
	Connected      bool
	DisconnectedAt *time.Time
}

// Tracker tracks connection state for the players of a single room
type Tracker struct {
	mu      sync.Mutex
	timeout time.Duration
	clock   clock.Clock
	logger  *slog.Logger
	conns   map[model.PlayerID]*connection
}

type connection struct {
	connected      bool
	disconnectedAt *time.Time
	timer          clock.Timer
}

// New creates a Tracker that removes disconnected players after timeout
func New(timeout time.Duration, clk clock.Clock, logger *slog.Logger) *Tracker {
	return &Tracker{
		timeout: timeout,
		clock:   clk,
		logger:  logger.With(slog.String("component", "conntrack")),
		conns:   make(map[model.PlayerID]*connection),
	}
}

// Add starts tracking a player in the connected state
func (t *Tracker) Add(id model.PlayerID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.conns[id]; ok {
		return model.ErrPlayerAlreadyTracked
	}
	t.conns[id] = &connection{connected: true}
	return nil
}

// Remove stops tracking a player and cancels any pending timer. Removing an
// untracked id is a no-op: removal is reachable from both a manual leave and
// a firing timeout, so it has to tolerate losing that race.
func (t *Tracker) Remove(id model.PlayerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.conns[id]
	if !ok {
		return
	}
	t.stopTimerLocked(conn)
	delete(t.conns, id)
}

// Disconnect marks the player disconnected and schedules onTimeout to fire
// after the configured grace period. A pre-existing timer is cancelled first,
// so disconnecting an already-disconnected player resets the clock.
func (t *Tracker) Disconnect(id model.PlayerID, onTimeout func(model.PlayerID)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.conns[id]
	if !ok {
		return model.ErrPlayerNotTracked
	}
	t.stopTimerLocked(conn)
	now := t.clock.Now()
	conn.connected = false
	conn.disconnectedAt = &now
	conn.timer = t.clock.AfterFunc(t.timeout, func() {
		t.logger.Debug("disconnect grace period expired",
			slog.String("player_id", string(id)))
		onTimeout(id)
	})
	return nil
}

// Reconnect marks the player connected again and cancels the pending timer
func (t *Tracker) Reconnect(id model.PlayerID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.conns[id]
	if !ok {
		return model.ErrPlayerNotTracked
	}
	t.stopTimerLocked(conn)
	conn.connected = true
	conn.disconnectedAt = nil
	return nil
}

// IsConnected reports whether the player is tracked and connected
func (t *Tracker) IsConnected(id model.PlayerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.conns[id]
	return ok && conn.connected
}

// Connection returns a snapshot of the player's tracked state
func (t *Tracker) Connection(id model.PlayerID) (*Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	conn, ok := t.conns[id]
	if !ok {
		return nil, model.ErrPlayerNotTracked
	}
	snapshot := &Connection{
		PlayerID:  id,
		Connected: conn.connected,
	}
	if conn.disconnectedAt != nil {
		at := *conn.disconnectedAt
		snapshot.DisconnectedAt = &at
	}
	return snapshot, nil
}

// PlayerIDs returns the ids of all tracked players, sorted
func (t *Tracker) PlayerIDs() []model.PlayerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]model.PlayerID, 0, len(t.conns))
	for id := range t.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Cleanup cancels every pending timer and clears all records. The owning
// room calls this on teardown so no timer can fire against a closed room.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, conn := range t.conns {
		t.stopTimerLocked(conn)
	}
	t.conns = make(map[model.PlayerID]*connection)
}

func (t *Tracker) stopTimerLocked(conn *connection) {
	if conn.timer != nil {
		conn.timer.Stop()
		conn.timer = nil
	}
}
