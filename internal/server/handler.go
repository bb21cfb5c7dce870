package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mcoot/gameroom-go/dependencies/random"
	"github.com/mcoot/gameroom-go/internal/quiz"
	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/room"
	"github.com/mcoot/gameroom-go/syncer"
	"github.com/mcoot/gameroom-go/validate"
)

// GameQuiz is the game the demo host can install in a room
const GameQuiz = "quiz"

// SyncerFactory builds extra synchronizers for a new room, on top of the
// room's websocket hub
type SyncerFactory func(roomID model.RoomID) []room.Synchronizer

// RoomHandler serves the room lifecycle endpoints
type RoomHandler struct {
	registry  *room.Registry
	hubs      *HubManager
	random    random.Random
	syncerFor SyncerFactory
	logger    *slog.Logger
}

// NewRoomHandler creates a RoomHandler. syncerFor may be nil.
func NewRoomHandler(registry *room.Registry, hubs *HubManager, rnd random.Random, syncerFor SyncerFactory, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{
		registry:  registry,
		hubs:      hubs,
		random:    rnd,
		syncerFor: syncerFor,
		logger:    logger.With(slog.String("component", "api")),
	}
}

// roomFrom resolves the room named in the request path
func (h *RoomHandler) roomFrom(r *http.Request) (*room.Room, error) {
	vars := mux.Vars(r)
	return h.registry.Get(model.RoomID(vars["roomID"]))
}

// requireHost checks that the acting player is the room's host
func requireHost(state *model.GameState, id model.PlayerID) error {
	if verr := validate.PlayerExists(state, id); verr != nil {
		return verr
	}
	for _, p := range state.Players {
		if p.ID == id && p.IsHost {
			return nil
		}
	}
	return NewNotHostError()
}

// CreateRoom handles POST /rooms
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}

	cfg, game, err := h.buildGame(req)
	if err != nil {
		WriteError(w, err)
		return
	}

	rm, err := h.registry.Create(cfg, game)
	if err != nil {
		WriteError(w, err)
		return
	}
	if qg, ok := game.(*quiz.Game); ok {
		qg.Bind(rm)
	}
	rm.AttachSynchronizer(h.synchronizerFor(rm.ID()))

	writeJSON(w, http.StatusCreated, RoomResponseFromRoom(rm))
}

// synchronizerFor combines the room's websocket hub with any externally
// configured transports
func (h *RoomHandler) synchronizerFor(roomID model.RoomID) room.Synchronizer {
	hub := h.hubs.GetOrCreateHub(roomID)
	if h.syncerFor == nil {
		return hub
	}
	extra := h.syncerFor(roomID)
	if len(extra) == 0 {
		return hub
	}
	return syncer.NewMulti(append([]room.Synchronizer{hub}, extra...)...)
}

// buildGame picks the game implementation and base config for a new room
func (h *RoomHandler) buildGame(req CreateRoomRequest) (model.GameConfig, room.Game, error) {
	switch req.Game {
	case "":
		return configFromRequest(req, model.GameConfig{}), nil, nil
	case GameQuiz:
		game := quiz.New(quiz.DefaultQuestions(), h.random, h.logger)
		return configFromRequest(req, quiz.Config()), game, nil
	default:
		return model.GameConfig{}, nil, NewInvalidRequestError(fmt.Sprintf("Unknown game %q", req.Game))
	}
}

// configFromRequest overlays the request's explicit fields on a base config
func configFromRequest(req CreateRoomRequest, base model.GameConfig) model.GameConfig {
	cfg := base
	if req.MinPlayers > 0 {
		cfg.MinPlayers = req.MinPlayers
	}
	if req.MaxPlayers > 0 {
		cfg.MaxPlayers = req.MaxPlayers
	}
	if len(req.Phases) > 0 {
		phases := make([]model.Phase, len(req.Phases))
		for i, p := range req.Phases {
			phases[i] = model.Phase(p)
		}
		cfg.Phases = phases
	}
	if req.AllowJoinInProgress {
		cfg.AllowJoinInProgress = true
	}
	if req.DisconnectTimeoutSeconds > 0 {
		cfg.DisconnectTimeout = time.Duration(req.DisconnectTimeoutSeconds) * time.Second
	}
	return cfg
}

// ListRooms handles GET /rooms
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.registry.List()
	summaries := make([]RoomSummary, len(rooms))
	for i, rm := range rooms {
		summaries[i] = RoomSummaryFromRoom(rm)
	}
	writeJSON(w, http.StatusOK, ListRoomsResponse{Rooms: summaries})
}

// GetRoom handles GET /rooms/{roomID}
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := h.roomFrom(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoomResponseFromRoom(rm))
}

// CloseRoom handles DELETE /rooms/{roomID}. With a player_id query
// parameter the caller must be the host; without one the close is treated
// as an operator action.
func (h *RoomHandler) CloseRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := h.roomFrom(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if playerID := r.URL.Query().Get("player_id"); playerID != "" {
		if err := requireHost(rm.State(), model.PlayerID(playerID)); err != nil {
			WriteError(w, err)
			return
		}
	}

	if err := h.registry.Close(r.Context(), rm.ID()); err != nil {
		h.hubs.RemoveHub(rm.ID())
		WriteError(w, err)
		return
	}
	h.hubs.RemoveHub(rm.ID())
	writeNoContent(w)
}

// JoinRoom handles POST /rooms/{roomID}/join
func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := h.roomFrom(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}
	if req.Name == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}

	player, err := rm.Join(r.Context(), model.Player{
		ID:       model.PlayerID(uuid.NewString()),
		Name:     req.Name,
		Metadata: req.Metadata,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, JoinRoomResponse{
		Player: *player,
		Room:   RoomResponseFromRoom(rm),
	})
}

// LeaveRoom handles POST /rooms/{roomID}/leave
func (h *RoomHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := h.roomFrom(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}
	if req.PlayerID == "" {
		WriteError(w, NewInvalidRequestError("player_id is required"))
		return
	}

	if err := rm.Leave(r.Context(), model.PlayerID(req.PlayerID)); err != nil {
		WriteError(w, err)
		return
	}
	writeNoContent(w)
}

// StartGame handles POST /rooms/{roomID}/start
func (h *RoomHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	rm, err := h.roomFrom(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}
	if err := requireHost(rm.State(), model.PlayerID(req.PlayerID)); err != nil {
		WriteError(w, err)
		return
	}

	if err := rm.Start(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoomResponseFromRoom(rm))
}

// EndGame handles POST /rooms/{roomID}/end
func (h *RoomHandler) EndGame(w http.ResponseWriter, r *http.Request) {
	rm, err := h.roomFrom(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}
	if err := requireHost(rm.State(), model.PlayerID(req.PlayerID)); err != nil {
		WriteError(w, err)
		return
	}

	if err := rm.End(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoomResponseFromRoom(rm))
}

// TransitionPhase handles POST /rooms/{roomID}/phase
func (h *RoomHandler) TransitionPhase(w http.ResponseWriter, r *http.Request) {
	rm, err := h.roomFrom(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req TransitionPhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}
	if req.Phase == "" {
		WriteError(w, NewInvalidRequestError("phase is required"))
		return
	}
	if err := requireHost(rm.State(), model.PlayerID(req.PlayerID)); err != nil {
		WriteError(w, err)
		return
	}

	if err := rm.TransitionPhase(r.Context(), model.Phase(req.Phase)); err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoomResponseFromRoom(rm))
}

// UpdateMetadata handles POST /rooms/{roomID}/metadata
func (h *RoomHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	rm, err := h.roomFrom(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req UpdateMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}
	if err := requireHost(rm.State(), model.PlayerID(req.PlayerID)); err != nil {
		WriteError(w, err)
		return
	}

	if err := rm.UpdateMetadata(r.Context(), req.Metadata); err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoomResponseFromRoom(rm))
}

// SubmitAction handles POST /rooms/{roomID}/actions. Game-level rejections
// come back as a result with success false, not as an HTTP error.
func (h *RoomHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	rm, err := h.roomFrom(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}
	if req.PlayerID == "" {
		WriteError(w, NewInvalidRequestError("player_id is required"))
		return
	}
	if req.Type == "" {
		WriteError(w, NewInvalidRequestError("type is required"))
		return
	}

	result, err := rm.HandleAction(r.Context(), model.PlayerAction{
		PlayerID: model.PlayerID(req.PlayerID),
		Type:     req.Type,
		Payload:  req.Payload,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ServeWebsocket handles GET /rooms/{roomID}/ws?player_id=...
func (h *RoomHandler) ServeWebsocket(w http.ResponseWriter, r *http.Request) {
	rm, err := h.roomFrom(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		WriteError(w, NewInvalidRequestError("player_id is required"))
		return
	}

	hub := h.hubs.GetOrCreateHub(rm.ID())
	ServeWS(w, r, hub, rm, model.PlayerID(playerID), h.logger)
}
