package room

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mcoot/gameroom-go/dependencies/clock"
	"github.com/mcoot/gameroom-go/dependencies/random"
	"github.com/mcoot/gameroom-go/metrics"
	"github.com/mcoot/gameroom-go/model"
)

const (
	// RoomCodeLength is the length of generated room codes
	RoomCodeLength = 6
	// RoomCodeAlphabet is the characters used in room codes (avoid confusing chars)
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// roomCodeAttempts bounds code generation against a pathological
	// random source; with the real one a collision is vanishingly rare
	roomCodeAttempts = 100
)

// Registry holds the live rooms of a host process, keyed by generated room
// codes
type Registry struct {
	mu         sync.RWMutex
	clock      clock.Clock
	random     random.Random
	logger     *slog.Logger
	roomLogger *slog.Logger // untagged parent handed to rooms
	metrics    *metrics.Metrics
	rooms      map[model.RoomID]*Room
}

// NewRegistry creates an empty Registry
func NewRegistry(clk clock.Clock, rnd random.Random, logger *slog.Logger) *Registry {
	return &Registry{
		clock:      clk,
		random:     rnd,
		logger:     logger.With(slog.String("component", "registry")),
		roomLogger: logger,
		rooms:      make(map[model.RoomID]*Room),
	}
}

// SetMetrics wires the collectors new rooms record activity on
func (r *Registry) SetMetrics(m *metrics.Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Create makes a room with a fresh code and registers it
func (r *Registry) Create(cfg model.GameConfig, game Game) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id model.RoomID
	for attempt := 0; ; attempt++ {
		if attempt >= roomCodeAttempts {
			return nil, fmt.Errorf("failed to generate an unused room code after %d attempts", roomCodeAttempts)
		}
		id = model.RoomID(r.random.String(RoomCodeLength, RoomCodeAlphabet))
		if _, exists := r.rooms[id]; !exists {
			break
		}
	}

	rm, err := New(id, cfg, game, r.clock, r.roomLogger)
	if err != nil {
		return nil, err
	}
	rm.SetMetrics(r.metrics)
	r.rooms[id] = rm
	r.metrics.RoomOpened()

	r.logger.Info("room created",
		slog.String("room_id", string(id)),
		slog.Int("room_count", len(r.rooms)))
	return rm, nil
}

// Get returns the room with the given id
func (r *Registry) Get(id model.RoomID) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return rm, nil
}

// List returns all registered rooms, sorted by id
func (r *Registry) List() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID() < rooms[j].ID() })
	return rooms
}

// Len returns the number of registered rooms
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Close closes the room and removes it from the registry. The registry
// forgets the room even when closing it reports an error.
func (r *Registry) Close(ctx context.Context, id model.RoomID) error {
	r.mu.Lock()
	rm, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return model.ErrRoomNotFound
	}
	delete(r.rooms, id)
	r.mu.Unlock()

	return rm.Close(ctx)
}

// CloseAll closes every room, returning the first error encountered
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.rooms = make(map[model.RoomID]*Room)
	r.mu.Unlock()

	var firstErr error
	for _, rm := range rooms {
		if err := rm.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
