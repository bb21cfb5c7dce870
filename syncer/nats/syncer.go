// Package nats implements a room synchronizer over NATS core pub/sub. Each
// announcement is published as a JSON envelope; the subject hierarchy keys on
// the room, then the announcement kind, so relays can subscribe to exactly
// the slice they care about (e.g. gameroom.ROOM42.event.>).
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/room"
	"github.com/mcoot/gameroom-go/syncer"
)

// Config holds NATS connection and subject settings
type Config struct {
	// URL is the NATS server URL (e.g., nats://localhost:4222)
	URL string

	// SubjectPrefix namespaces the published subjects
	SubjectPrefix string
}

// DefaultConfig returns sensible defaults for NATS configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "gameroom",
	}
}

// Syncer publishes one room's announcements through NATS
type Syncer struct {
	conn     *nats.Conn
	roomID   model.RoomID
	cfg      Config
	ownsConn bool
}

// New creates a Syncer for the given room with its own NATS connection
func New(roomID model.RoomID, cfg Config) (*Syncer, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	return &Syncer{
		conn:     conn,
		roomID:   roomID,
		cfg:      cfg,
		ownsConn: true,
	}, nil
}

// NewWithConn creates a Syncer on an existing connection (to share one
// connection across rooms)
func NewWithConn(conn *nats.Conn, roomID model.RoomID, cfg Config) *Syncer {
	return &Syncer{
		conn:   conn,
		roomID: roomID,
		cfg:    cfg,
	}
}

// Close drains the connection if the Syncer owns it
func (s *Syncer) Close() error {
	if s.ownsConn {
		return s.conn.Drain()
	}
	return nil
}

// Ensure Syncer implements the synchronizer interface
var _ room.Synchronizer = (*Syncer)(nil)

func (s *Syncer) BroadcastState(ctx context.Context, state *model.GameState) error {
	return s.publish(stateSubject(s.cfg.SubjectPrefix, s.roomID), syncer.Envelope{
		Kind:   syncer.KindState,
		RoomID: s.roomID,
		State:  state,
	})
}

func (s *Syncer) SendToPlayer(ctx context.Context, playerID model.PlayerID, state *model.GameState) error {
	return s.publish(playerSubject(s.cfg.SubjectPrefix, s.roomID, playerID), syncer.Envelope{
		Kind:     syncer.KindDirect,
		RoomID:   s.roomID,
		PlayerID: playerID,
		State:    state,
	})
}

func (s *Syncer) BroadcastEvent(ctx context.Context, event model.EventType, payload any) error {
	return s.publish(eventSubject(s.cfg.SubjectPrefix, s.roomID, string(event)), syncer.Envelope{
		Kind:    syncer.KindEvent,
		RoomID:  s.roomID,
		Event:   string(event),
		Payload: payload,
	})
}

func (s *Syncer) BroadcastCustomEvent(ctx context.Context, eventType string, payload any) error {
	return s.publish(customSubject(s.cfg.SubjectPrefix, s.roomID, eventType), syncer.Envelope{
		Kind:    syncer.KindCustom,
		RoomID:  s.roomID,
		Event:   eventType,
		Payload: payload,
	})
}

// publish is fire-and-forget; core NATS buffers and flushes asynchronously
func (s *Syncer) publish(subject string, env syncer.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.conn.Publish(subject, data)
}

// Subject generation functions. Event names like "player:joined" map onto
// the subject hierarchy as "event.player.joined", so a relay can subscribe
// to one family with a wildcard (gameroom.ROOM42.event.player.>).

func stateSubject(prefix string, id model.RoomID) string {
	return fmt.Sprintf("%s.%s.state", prefix, id)
}

func playerSubject(prefix string, id model.RoomID, playerID model.PlayerID) string {
	return fmt.Sprintf("%s.%s.player.%s", prefix, id, playerID)
}

func eventSubject(prefix string, id model.RoomID, event string) string {
	return fmt.Sprintf("%s.%s.event.%s", prefix, id, eventToken(event))
}

func customSubject(prefix string, id model.RoomID, event string) string {
	return fmt.Sprintf("%s.%s.custom.%s", prefix, id, eventToken(event))
}

func eventToken(event string) string {
	return strings.ReplaceAll(event, ":", ".")
}
