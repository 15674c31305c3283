package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/okian/demonlist/internal/adapters/auth"
	"github.com/okian/demonlist/internal/adapters/http/api"
	"github.com/okian/demonlist/internal/adapters/http/site"
	"github.com/okian/demonlist/internal/adapters/http/swagger"
	"github.com/okian/demonlist/internal/adapters/repository"
	app "github.com/okian/demonlist/internal/app"
	"github.com/okian/demonlist/internal/config"
	"github.com/okian/demonlist/internal/domain/ranking"
	"github.com/okian/demonlist/internal/domain/scoring"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	configureMetrics(cfg)

	svc, authenticator, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(cfg, svc, authenticator, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// configureMetrics applies the metric naming, buckets and constant labels from cfg.
func configureMetrics(cfg *config.Config) {
	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(cfg.MetricsBuckets),
		metrics.WithConstLabels(cfg.MetricsLabels),
	)
}

// buildService wires storage, rank policy, scoring and auth from cfg.
// The returned authenticator is nil when admin login is not configured.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, *auth.Authenticator, error) {
	store, err := repository.Open(ctx, cfg.StorageDriver, cfg.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	policy, err := ranking.ParsePolicy(cfg.RankPolicy)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("invalid rank policy: %w", err)
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithPersistence(store),
		app.WithRankPolicy(policy),
		app.WithScoring(scoring.WithBasePoints(cfg.BasePoints), scoring.WithDecay(cfg.Decay)),
		app.WithIdempotencySize(cfg.IdempotencySize),
	}

	var authenticator *auth.Authenticator
	if cfg.AdminEnabled() {
		authenticator = auth.New(cfg.JWTSecret,
			auth.WithAdmin(cfg.AdminUsername, cfg.AdminPasswordHash),
			auth.WithTokenTTL(cfg.TokenTTL),
			auth.WithLogger(log.Named("auth")),
		)
		opts = append(opts, app.WithAuthorizer(authenticator))
	} else {
		log.Warn(ctx, "admin login not configured; the list is read-only")
	}

	log.Info(ctx, "storage opened",
		logger.String("driver", cfg.StorageDriver),
		logger.String("path", cfg.StoragePath),
		logger.String("rank_policy", string(policy)),
	)
	return app.New(opts...), authenticator, nil
}

// newHandler builds the router: API, docs and the static site.
func newHandler(cfg *config.Config, svc *app.Service, authenticator *auth.Authenticator, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(api.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(api.AccessLog(log.Named("http")))

	apiOpts := []api.Option{
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		api.WithLoginLimiter(auth.NewIPRateLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst)),
		api.WithLogger(log.Named("api")),
	}
	if authenticator != nil {
		apiOpts = append(apiOpts, api.WithAuthenticator(authenticator))
	}
	api.NewServer(svc, apiOpts...).Register(r)
	swagger.Register(r)
	site.Register(r)
	return r
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes gauges derived from service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	if levels, ok := svc.GetStats()["levels"].(int); ok {
		metrics.UpdateLevelCount(levels)
	}
}
