package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/room"
	"github.com/mcoot/gameroom-go/syncer"
	"github.com/mcoot/gameroom-go/validate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size; actions are small
	maxMessageSize = 4096

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Inbound messages are throttled per socket
const (
	messagesPerSecond = 5
	messageBurst      = 10
)

// The demo host accepts connections from any origin
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// client is one websocket connection held by one player
type client struct {
	hub         *Hub
	room        *room.Room
	conn        *websocket.Conn
	playerID    model.PlayerID
	send        chan []byte
	done        chan struct{}
	stopOnce    sync.Once
	limiter     *rate.Limiter
	connectedAt time.Time
	logger      *slog.Logger
}

// actionMessage is the inbound frame a client sends to play
type actionMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// stop tells the pumps to wind the connection down. The send channel is
// never closed, so late sends park harmlessly instead of panicking.
func (c *client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// ServeWS upgrades the request and runs the connection until the client goes
// away. A reconnecting player has their pending removal cancelled and
// receives a fresh snapshot; when a player's last socket drops, the room is
// told so the disconnect grace period starts.
func ServeWS(w http.ResponseWriter, r *http.Request, hub *Hub, rm *room.Room, playerID model.PlayerID, logger *slog.Logger) {
	state := rm.State()
	if verr := validate.PlayerExists(state, playerID); verr != nil {
		WriteError(w, verr)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own response
		logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:         hub,
		room:        rm,
		conn:        conn,
		playerID:    playerID,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
		limiter:     rate.NewLimiter(messagesPerSecond, messageBurst),
		connectedAt: time.Now(),
		logger: logger.With(
			slog.String("room_id", string(rm.ID())),
			slog.String("player_id", string(playerID))),
	}

	hub.Register(c)
	go c.writePump()

	if connected := playerConnected(state, playerID); !connected {
		if err := rm.Reconnect(r.Context(), playerID); err != nil {
			c.logger.Warn("reconnect failed", slog.String("error", err.Error()))
		}
	} else {
		c.sendSnapshot()
	}

	c.readPump(r.Context())

	hub.Unregister(c)
	if hub.clientCountFor(playerID) == 0 {
		// Not r.Context(): the request is finishing, the disconnect must
		// still be recorded
		if err := rm.Disconnect(context.Background(), playerID); err != nil {
			c.logger.Debug("disconnect not recorded", slog.String("error", err.Error()))
		}
	}
}

func playerConnected(state *model.GameState, id model.PlayerID) bool {
	for _, p := range state.Players {
		if p.ID == id {
			return p.IsConnected
		}
	}
	return false
}

// readPump consumes action frames until the connection dies
func (c *client) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		if !c.limiter.Allow() {
			c.sendResult(model.ActionResult{Success: false, Error: "too many messages"})
			continue
		}

		var msg actionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendResult(model.ActionResult{Success: false, Error: "malformed action message"})
			continue
		}

		result, err := c.room.HandleAction(ctx, model.PlayerAction{
			PlayerID: c.playerID,
			Type:     msg.Type,
			Payload:  msg.Payload,
		})
		if err != nil {
			result = model.ActionResult{Success: false, Error: err.Error()}
		}
		c.sendResult(result)
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			// Flush anything still queued before saying goodbye
			for {
				select {
				case data := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
					return
				}
			}
		}
	}
}

func (c *client) trySend(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.logger.Warn("websocket message dropped - client buffer full")
	}
}

func (c *client) sendSnapshot() {
	data, err := json.Marshal(syncer.Envelope{
		Kind:     syncer.KindDirect,
		RoomID:   c.room.ID(),
		PlayerID: c.playerID,
		State:    c.room.State(),
	})
	if err != nil {
		c.logger.Error("failed to marshal state snapshot", slog.String("error", err.Error()))
		return
	}
	c.trySend(data)
}

func (c *client) sendResult(result model.ActionResult) {
	data, err := json.Marshal(syncer.Envelope{
		Kind:     kindResult,
		RoomID:   c.room.ID(),
		PlayerID: c.playerID,
		Payload:  result,
	})
	if err != nil {
		c.logger.Error("failed to marshal action result", slog.String("error", err.Error()))
		return
	}
	c.trySend(data)
}
