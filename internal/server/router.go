package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/gameroom-go/dependencies/random"
	"github.com/mcoot/gameroom-go/internal/middleware"
	"github.com/mcoot/gameroom-go/metrics"
	"github.com/mcoot/gameroom-go/room"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Registry *room.Registry
	Hubs     *HubManager
	Random   random.Random
	Metrics  *metrics.Metrics

	// SyncerFor adds external transports to every new room; nil means
	// websocket fan-out only
	SyncerFor SyncerFactory
}

// NewRouter creates the demo host's router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	roomHandler := NewRoomHandler(cfg.Registry, cfg.Hubs, cfg.Random, cfg.SyncerFor, cfg.Logger)

	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger, panicResponse)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Room lifecycle
	rooms := api.PathPrefix("/rooms").Subrouter()
	rooms.HandleFunc("", roomHandler.CreateRoom).Methods(http.MethodPost)
	rooms.HandleFunc("", roomHandler.ListRooms).Methods(http.MethodGet)
	rooms.HandleFunc("/{roomID}", roomHandler.GetRoom).Methods(http.MethodGet)
	rooms.HandleFunc("/{roomID}", roomHandler.CloseRoom).Methods(http.MethodDelete)
	rooms.HandleFunc("/{roomID}/join", roomHandler.JoinRoom).Methods(http.MethodPost)
	rooms.HandleFunc("/{roomID}/leave", roomHandler.LeaveRoom).Methods(http.MethodPost)
	rooms.HandleFunc("/{roomID}/start", roomHandler.StartGame).Methods(http.MethodPost)
	rooms.HandleFunc("/{roomID}/end", roomHandler.EndGame).Methods(http.MethodPost)
	rooms.HandleFunc("/{roomID}/phase", roomHandler.TransitionPhase).Methods(http.MethodPost)
	rooms.HandleFunc("/{roomID}/metadata", roomHandler.UpdateMetadata).Methods(http.MethodPost)
	rooms.HandleFunc("/{roomID}/actions", roomHandler.SubmitAction).Methods(http.MethodPost)
	rooms.HandleFunc("/{roomID}/ws", roomHandler.ServeWebsocket).Methods(http.MethodGet)

	// Health check endpoint
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Prometheus scrapes bypass the request log
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}

// healthHandler returns a simple health check response
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func panicResponse(w http.ResponseWriter, _ *http.Request, _ any) {
	WriteError(w, NewInternalError())
}
