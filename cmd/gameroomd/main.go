package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mcoot/gameroom-go/dependencies/clock"
	"github.com/mcoot/gameroom-go/dependencies/random"
	"github.com/mcoot/gameroom-go/internal/server"
	"github.com/mcoot/gameroom-go/metrics"
	"github.com/mcoot/gameroom-go/model"
	"github.com/mcoot/gameroom-go/room"
	natssync "github.com/mcoot/gameroom-go/syncer/nats"
	redissync "github.com/mcoot/gameroom-go/syncer/redis"
)

// serveOptions configures the serve command. Every flag falls back to a
// GAMEROOM_* environment variable.
type serveOptions struct {
	host      string
	port      int
	logLevel  string
	redisURL  string
	natsURL   string
	namespace string
}

func defaultServeOptions() serveOptions {
	return serveOptions{
		host:      os.Getenv("GAMEROOM_HOST"),
		port:      getEnvIntOrDefault("GAMEROOM_PORT", 8080),
		logLevel:  getEnvOrDefault("GAMEROOM_LOG_LEVEL", "info"),
		redisURL:  os.Getenv("GAMEROOM_REDIS_URL"),
		natsURL:   os.Getenv("GAMEROOM_NATS_URL"),
		namespace: getEnvOrDefault("GAMEROOM_METRICS_NAMESPACE", "gameroom"),
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gameroomd",
		Short: "Multiplayer game room server",
		Long: `gameroomd hosts multiplayer game rooms over REST and websockets.

Rooms live in memory. Redis or NATS can be attached to fan each room's
announcements out to other consumers.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	opts := defaultServeOptions()

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	serveCmd.Flags().StringVar(&opts.host, "host", opts.host, "Listen host (env: GAMEROOM_HOST)")
	serveCmd.Flags().IntVar(&opts.port, "port", opts.port, "Listen port (env: GAMEROOM_PORT)")
	serveCmd.Flags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level: debug, info, warn, error (env: GAMEROOM_LOG_LEVEL)")
	serveCmd.Flags().StringVar(&opts.redisURL, "redis-url", opts.redisURL, "Publish room announcements to redis (env: GAMEROOM_REDIS_URL)")
	serveCmd.Flags().StringVar(&opts.natsURL, "nats-url", opts.natsURL, "Publish room announcements to NATS (env: GAMEROOM_NATS_URL)")
	serveCmd.Flags().StringVar(&opts.namespace, "metrics-namespace", opts.namespace, "Prometheus namespace (env: GAMEROOM_METRICS_NAMESPACE)")

	return serveCmd
}

func runServe(opts serveOptions) error {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(opts.logLevel),
	}))
	slog.SetDefault(logger)

	m := metrics.New(opts.namespace)
	rnd := random.New()

	registry := room.NewRegistry(clock.New(), rnd, logger)
	registry.SetMetrics(m)

	hubs := server.NewHubManager(logger)

	syncerFor, closeSyncers, err := buildSyncerFactory(opts, logger)
	if err != nil {
		return err
	}
	defer closeSyncers()

	router := server.NewRouter(server.RouterConfig{
		Logger:    logger,
		Registry:  registry,
		Hubs:      hubs,
		Random:    rnd,
		Metrics:   m,
		SyncerFor: syncerFor,
	})

	serverConfig := server.DefaultServerConfig()
	serverConfig.Host = opts.host
	serverConfig.Port = opts.port
	srv := server.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		return err
	}
	if err := registry.CloseAll(context.Background()); err != nil {
		logger.Warn("failed to close all rooms", slog.String("error", err.Error()))
	}
	hubs.CloseAll()

	logger.Info("server stopped")
	return nil
}

// buildSyncerFactory wires the optional external transports. Connections are
// shared across rooms; each room gets its own thin syncer over them.
func buildSyncerFactory(opts serveOptions, logger *slog.Logger) (server.SyncerFactory, func(), error) {
	var factories []func(model.RoomID) room.Synchronizer
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if opts.redisURL != "" {
		rcfg := redissync.DefaultConfig()
		rcfg.URL = opts.redisURL
		redisOpts, err := goredis.ParseURL(rcfg.URL)
		if err != nil {
			return nil, closeAll, fmt.Errorf("invalid redis URL: %w", err)
		}
		redisOpts.PoolSize = rcfg.PoolSize
		redisOpts.MinIdleConns = rcfg.MinIdleConns
		client := goredis.NewClient(redisOpts)
		closers = append(closers, func() { _ = client.Close() })
		factories = append(factories, func(id model.RoomID) room.Synchronizer {
			return redissync.NewWithClient(client, id, rcfg)
		})
		logger.Info("redis fan-out enabled")
	}

	if opts.natsURL != "" {
		ncfg := natssync.DefaultConfig()
		ncfg.URL = opts.natsURL
		conn, err := nats.Connect(ncfg.URL)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		closers = append(closers, conn.Close)
		factories = append(factories, func(id model.RoomID) room.Synchronizer {
			return natssync.NewWithConn(conn, id, ncfg)
		})
		logger.Info("nats fan-out enabled")
	}

	if len(factories) == 0 {
		return nil, closeAll, nil
	}
	return func(id model.RoomID) []room.Synchronizer {
		out := make([]room.Synchronizer, len(factories))
		for i, f := range factories {
			out[i] = f(id)
		}
		return out
	}, closeAll, nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
