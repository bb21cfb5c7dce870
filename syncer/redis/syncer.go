// Package redis implements a room synchronizer over Redis pub/sub. Each
// announcement is published as a JSON envelope on the room's channel (or the
// player's channel for direct sends); Subscribe is the receiving half, for
// processes relaying a room hosted elsewhere.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/room"
	"github.com/mcoot/gameroom-go/syncer"
)

// Syncer publishes one room's announcements through Redis
type Syncer struct {
	client *redis.Client
	roomID model.RoomID
	cfg    Config
}

// New creates a Syncer for the given room with its own Redis connection
func New(roomID model.RoomID, cfg Config) (*Syncer, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Syncer{
		client: client,
		roomID: roomID,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Syncer with an existing client (for testing, or to
// share one connection across rooms)
func NewWithClient(client *redis.Client, roomID model.RoomID, cfg Config) *Syncer {
	return &Syncer{
		client: client,
		roomID: roomID,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Syncer) Close() error {
	return s.client.Close()
}

// Ensure Syncer implements the synchronizer interface
var _ room.Synchronizer = (*Syncer)(nil)

func (s *Syncer) BroadcastState(ctx context.Context, state *model.GameState) error {
	return s.publish(ctx, roomChannel(s.cfg.ChannelPrefix, s.roomID), syncer.Envelope{
		Kind:   syncer.KindState,
		RoomID: s.roomID,
		State:  state,
	})
}

func (s *Syncer) SendToPlayer(ctx context.Context, playerID model.PlayerID, state *model.GameState) error {
	return s.publish(ctx, playerChannel(s.cfg.ChannelPrefix, s.roomID, playerID), syncer.Envelope{
		Kind:     syncer.KindDirect,
		RoomID:   s.roomID,
		PlayerID: playerID,
		State:    state,
	})
}

func (s *Syncer) BroadcastEvent(ctx context.Context, event model.EventType, payload any) error {
	return s.publish(ctx, roomChannel(s.cfg.ChannelPrefix, s.roomID), syncer.Envelope{
		Kind:    syncer.KindEvent,
		RoomID:  s.roomID,
		Event:   string(event),
		Payload: payload,
	})
}

func (s *Syncer) BroadcastCustomEvent(ctx context.Context, eventType string, payload any) error {
	return s.publish(ctx, roomChannel(s.cfg.ChannelPrefix, s.roomID), syncer.Envelope{
		Kind:    syncer.KindCustom,
		RoomID:  s.roomID,
		Event:   eventType,
		Payload: payload,
	})
}

func (s *Syncer) publish(ctx context.Context, channel string, env syncer.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe delivers every envelope published for the room, including
// player-directed ones, until the context is cancelled. Messages that fail to
// decode are skipped.
func (s *Syncer) Subscribe(ctx context.Context) (<-chan syncer.Envelope, error) {
	pubsub := s.client.PSubscribe(ctx,
		roomChannel(s.cfg.ChannelPrefix, s.roomID),
		playerChannel(s.cfg.ChannelPrefix, s.roomID, "*"),
	)

	// Wait for the subscription to be registered before returning, so a
	// publish right after Subscribe cannot be missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan syncer.Envelope)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env syncer.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
