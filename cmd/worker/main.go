package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"recon_sync/ingestion/internal/cache"
	"recon_sync/ingestion/internal/client"
	"recon_sync/ingestion/internal/config"
	"recon_sync/ingestion/internal/metrics"
	"recon_sync/ingestion/internal/query"
	"recon_sync/ingestion/internal/repository"
	"recon_sync/ingestion/internal/scheduler"
	"recon_sync/ingestion/internal/status"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Setup logger
	setupLogger(cfg)

	log.Info().Msg("Starting FTC team/event sync worker")
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Float64("interval_hours", cfg.SyncIntervalHours).
		Int("page_size", cfg.SyncPageSize).
		Bool("sync_teams", cfg.SyncTeams).
		Bool("sync_events", cfg.SyncEvents).
		Msg("Configuration loaded")

	if cfg.SearchInsecureSkipVerify {
		log.Warn().
			Str("search_base_url", cfg.SearchBaseURL).
			Msg("TLS CERTIFICATE VERIFICATION IS DISABLED for the search index. Responses can be intercepted or forged. Unset SEARCH_INSECURE_SKIP_VERIFY once the certificate is fixed.")
	}

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	// Initialize search client
	searchOpts, err := cfg.SearchOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid search configuration")
	}
	builder, err := query.NewSearchBuilder(searchOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid search configuration")
	}
	searchClient := client.NewClient(builder, client.Options{
		PageSize:           cfg.SyncPageSize,
		Timeout:            cfg.SearchTimeout,
		InsecureSkipVerify: cfg.SearchInsecureSkipVerify,
		MaxRetries:         cfg.SearchMaxRetries,
		RetryDelay:         cfg.SearchRetryDelay,
	})
	log.Info().Str("base_url", cfg.SearchBaseURL).Msg("Search client initialized")

	// Initialize database connection
	dbConfig := repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}

	db, err := repository.NewDatabase(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	tracker := status.NewTracker()
	opts := []scheduler.Option{scheduler.WithStatsRefresher(db)}

	// Initialize Redis client
	redisCache, err := cache.NewRedisCache(cache.Config{
		Addr:        cfg.RedisAddr(),
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		SnapshotTTL: cfg.RedisSnapshotTTL,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
	} else {
		defer redisCache.Close()
		log.Info().Str("addr", cfg.RedisAddr()).Msg("Redis cache connected")
		restoreSnapshot(ctx, redisCache, tracker)
		opts = append(opts, scheduler.WithSnapshotStore(redisCache))
	}

	// Start metrics HTTP server
	if cfg.EnableMetrics {
		go startMetricsServer(ctx, cfg.MetricsPort, db)
	}

	// Start status HTTP server
	statusServer := status.NewServer(cfg.StatusPort, tracker)
	go func() {
		log.Info().Int("port", cfg.StatusPort).Msg("Starting status server")
		if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Status server failed")
			cancel()
		}
	}()

	// Update system uptime metric
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Create and start scheduler
	sink := repository.NewSink(db.Pool, cfg.Mode())
	sched, err := scheduler.NewScheduler(cfg, searchClient, sink, tracker, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	log.Info().Msg("Starting scheduler...")
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// Keep running until context is cancelled
	<-ctx.Done()

	// Graceful shutdown
	log.Info().Msg("Shutting down scheduler...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Status server shutdown failed")
	}

	log.Info().Msg("Worker shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger(cfg *config.Config) {
	// Pretty console logging in development
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		parsedLevel, err := zerolog.ParseLevel(cfg.LogLevel)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// restoreSnapshot seeds the tracker with the state saved by the previous run
func restoreSnapshot(ctx context.Context, c *cache.RedisCache, tracker *status.Tracker) {
	snap, err := c.LoadSnapshot(ctx)
	if errors.Is(err, cache.ErrNotFound) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to restore status snapshot")
		return
	}

	tracker.Restore(snap)
	log.Info().
		Str("last_outcome", string(snap.LastOutcome)).
		Int("consecutive_failures", snap.ConsecutiveFailures).
		Msg("Status snapshot restored")
}

// healthChecker is the part of *repository.Database the health endpoint reads
type healthChecker interface {
	Health(ctx context.Context) error
	PoolStats() map[string]interface{}
}

// healthHandler reports database reachability along with pool statistics
func healthHandler(db healthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status": "healthy",
			"pool":   db.PoolStats(),
		}
		code := http.StatusOK
		if err := db.Health(r.Context()); err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Warn().Err(err).Msg("Failed to write health response")
		}
	}
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, port int, db healthChecker) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", healthHandler(db))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.Info().Int("port", port).Msg("Starting metrics server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
