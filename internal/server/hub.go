package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/room"
	"github.com/mcoot/gameroom-go/syncer"
)

// kindResult tags action results sent back on a player's own socket. The
// other kinds come from the syncer envelope.
const kindResult = "result"

// outboundMessage is a marshalled envelope bound for one player or the
// whole room
type outboundMessage struct {
	target model.PlayerID // empty means broadcast
	data   []byte
}

// Hub fans one room's announcements out to its websocket clients. It
// implements room.Synchronizer: sends never block the room, and a client
// that cannot keep up has messages dropped rather than stalling everyone.
type Hub struct {
	roomID  model.RoomID
	clients map[*client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	outbound  chan outboundMessage
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a Hub for a room. Run must be started for messages to flow.
func NewHub(roomID model.RoomID, logger *slog.Logger) *Hub {
	return &Hub{
		roomID:   roomID,
		clients:  make(map[*client]bool),
		logger:   logger.With(slog.String("room_id", string(roomID))),
		outbound: make(chan outboundMessage, 256),
		done:     make(chan struct{}),
	}
}

// Run delivers queued messages until the hub is closed
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case msg := <-h.outbound:
			h.fanOut(msg)
		case <-h.done:
			// Deliver what was queued before shutting clients down, so a
			// closing room's final announcements still go out
			for {
				select {
				case msg := <-h.outbound:
					h.fanOut(msg)
				default:
					h.closeClients()
					return
				}
			}
		}
	}
}

func (h *Hub) fanOut(msg outboundMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if msg.target != "" && c.playerID != msg.target {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			h.logger.Warn("websocket message dropped - client buffer full",
				slog.String("player_id", string(c.playerID)))
		}
	}
}

func (h *Hub) closeClients() {
	h.mu.Lock()
	clientCount := len(h.clients)
	for c := range h.clients {
		c.stop()
		delete(h.clients, c)
	}
	h.mu.Unlock()
	h.logger.Info("websocket hub stopped", slog.Int("disconnected_clients", clientCount))
}

// Register adds a client to the hub
func (h *Hub) Register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	clientCount := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client registered",
		slog.String("player_id", string(c.playerID)),
		slog.Int("total_clients", clientCount))
}

// Unregister removes a client and stops its pumps. Safe to call for a
// client the hub has already dropped.
func (h *Hub) Unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	c.stop()
	clientCount := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client unregistered",
		slog.String("player_id", string(c.playerID)),
		slog.Duration("connection_duration", time.Since(c.connectedAt)),
		slog.Int("total_clients", clientCount))
}

// Close shuts down the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// clientCountFor counts the open sockets a single player holds
func (h *Hub) clientCountFor(playerID model.PlayerID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for c := range h.clients {
		if c.playerID == playerID {
			count++
		}
	}
	return count
}

func (h *Hub) enqueue(msg outboundMessage) {
	select {
	case h.outbound <- msg:
	default:
		h.logger.Warn("websocket message dropped - hub buffer full")
	}
}

// BroadcastState implements room.Synchronizer
func (h *Hub) BroadcastState(_ context.Context, state *model.GameState) error {
	data, err := json.Marshal(syncer.Envelope{
		Kind:   syncer.KindState,
		RoomID: h.roomID,
		State:  state,
	})
	if err != nil {
		return err
	}
	h.enqueue(outboundMessage{data: data})
	return nil
}

// SendToPlayer implements room.Synchronizer
func (h *Hub) SendToPlayer(_ context.Context, playerID model.PlayerID, state *model.GameState) error {
	data, err := json.Marshal(syncer.Envelope{
		Kind:     syncer.KindDirect,
		RoomID:   h.roomID,
		PlayerID: playerID,
		State:    state,
	})
	if err != nil {
		return err
	}
	h.enqueue(outboundMessage{target: playerID, data: data})
	return nil
}

// BroadcastEvent implements room.Synchronizer
func (h *Hub) BroadcastEvent(_ context.Context, event model.EventType, payload any) error {
	data, err := json.Marshal(syncer.Envelope{
		Kind:    syncer.KindEvent,
		RoomID:  h.roomID,
		Event:   string(event),
		Payload: payload,
	})
	if err != nil {
		return err
	}
	h.enqueue(outboundMessage{data: data})
	return nil
}

// BroadcastCustomEvent implements room.Synchronizer
func (h *Hub) BroadcastCustomEvent(_ context.Context, eventType string, payload any) error {
	data, err := json.Marshal(syncer.Envelope{
		Kind:    syncer.KindCustom,
		RoomID:  h.roomID,
		Event:   eventType,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	h.enqueue(outboundMessage{data: data})
	return nil
}

// Ensure Hub implements room.Synchronizer
var _ room.Synchronizer = (*Hub)(nil)

// HubManager holds the hubs for every open room
type HubManager struct {
	hubs   map[model.RoomID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates an empty HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.RoomID]*Hub),
		logger: logger.With(slog.String("component", "ws")),
	}
}

// GetOrCreateHub returns the hub for a room, starting one if it doesn't
// exist
func (m *HubManager) GetOrCreateHub(roomID model.RoomID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[roomID]; ok {
		return hub
	}

	hub := NewHub(roomID, m.logger)
	m.hubs[roomID] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a room, or nil if it doesn't exist
func (m *HubManager) GetHub(roomID model.RoomID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[roomID]
}

// RemoveHub removes and closes a hub
func (m *HubManager) RemoveHub(roomID model.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[roomID]; ok {
		hub.Close()
		delete(m.hubs, roomID)
		m.logger.Info("websocket hub removed", slog.String("room_id", string(roomID)))
	}
}

// CloseAll closes every hub
func (m *HubManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for roomID, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, roomID)
	}
}
