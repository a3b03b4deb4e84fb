package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"achievekit/achieve"
	jsonfile "achievekit/adapters/jsonfile"
	mem "achievekit/adapters/memory"
	redisAdapter "achievekit/adapters/redis"
	sqlxAdapter "achievekit/adapters/sqlx"
	"achievekit/analytics"
	"achievekit/api/httpapi"
	"achievekit/config"
	"achievekit/core"
	"achievekit/engine"
	"achievekit/integrations/webhook"
	"achievekit/leaderboard"
	"achievekit/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Service *achieve.Service
	Metrics *analytics.Metrics
	Board   *leaderboard.SkipList
	Handler http.Handler
	Server  *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	if path := os.Getenv("ACHIEVEKIT_CONFIG"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideCatalog(cfg *config.Config) (*core.Catalog, error) {
	return config.LoadCatalog(cfg.Catalog.Path)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.SnapshotStore, error) {
	return setupStorage(ctx, cfg, logger)
}

func provideBoard() *leaderboard.SkipList {
	return leaderboard.NewSkipList()
}

func provideMetrics() *analytics.Metrics {
	return analytics.NewMetrics()
}

func provideService(cfg *config.Config, catalog *core.Catalog, hub *realtime.Hub,
	storage engine.SnapshotStore, board *leaderboard.SkipList, metrics *analytics.Metrics,
	logger *slog.Logger) *achieve.Service {

	mode := engine.DispatchSync
	if cfg.Engine.DispatchMode == "async" {
		mode = engine.DispatchAsync
	}

	tracker := leaderboard.NewTracker(board)
	hooks := []func(core.Event){metrics.OnEvent, tracker.OnEvent}
	if len(cfg.Analytics.WebhookURLs) > 0 {
		sink := webhook.New(cfg.Analytics.WebhookURLs,
			webhook.WithEventTypes(core.EventAchievementUnlocked, core.EventAchievementClaimed, core.EventCollectionCompleted))
		hooks = append(hooks, func(e core.Event) { sink.OnEvent(context.Background(), e) })
	}

	opts := []achieve.Option{
		achieve.WithStore(storage),
		achieve.WithRealtime(hub),
		achieve.WithLogger(logger),
		achieve.WithDispatchMode(mode),
		achieve.WithSweepInterval(cfg.Engine.SweepInterval),
	}
	for _, hook := range hooks {
		opts = append(opts, achieve.WithHook(hook))
	}
	return achieve.New(catalog, opts...)
}

func provideHandler(svc *achieve.Service, hub *realtime.Hub, board *leaderboard.SkipList, cfg *config.Config) http.Handler {
	return httpapi.NewMux(svc.Engine, hub, board, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.SnapshotStore, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis, logger)
	case "sql":
		store, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "file":
		return jsonfile.New(cfg.Storage.File.Path, logger)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
