package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beaconwatch/beacon/internal/analytics"
	"github.com/beaconwatch/beacon/internal/api"
	"github.com/beaconwatch/beacon/internal/config"
	"github.com/beaconwatch/beacon/internal/metrics"
	"github.com/beaconwatch/beacon/internal/monitor"
	"github.com/beaconwatch/beacon/internal/notify"
	"github.com/beaconwatch/beacon/internal/rollup"
	"github.com/beaconwatch/beacon/internal/secrets"
	"github.com/beaconwatch/beacon/internal/status"
	"github.com/beaconwatch/beacon/internal/storage"
	"github.com/beaconwatch/beacon/internal/timeutil"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "beacon:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg.Logging)
	slog.SetDefault(log)

	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN is not set; admin API is disabled")
	}

	store, err := storage.NewSQLiteStore(cfg.Database.Path, cfg.Database.MaxReadConns)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	m := metrics.New()
	resolver := secrets.NewResolver(cfg.Secrets)
	dispatcher := notify.NewDispatcher(store, resolver, log, m)

	builder := status.NewBuilder(store)
	snapshot := status.NewService(store, builder, log, cfg.Snapshot.MaxAgeSec, cfg.Snapshot.RefreshAgeSec)

	thresholds := monitor.Thresholds{
		Failure: cfg.Scheduler.FailureThreshold,
		Success: cfg.Scheduler.SuccessThreshold,
	}
	scheduler := monitor.NewScheduler(store, dispatcher, snapshot, log, m, thresholds, cfg.Scheduler.Workers)
	if cfg.Scheduler.AllowPrivate {
		log.Warn("private-network probe guard is disabled")
		scheduler.AllowPrivate = true
		dispatcher.AllowPrivate = true
	}
	rollups := rollup.NewRunner(store, log, m)
	an := analytics.NewService(store)

	srv := api.NewServer(store, log, m, scheduler, rollups, snapshot, an, dispatcher,
		cfg.AdminToken, cfg.RateLimit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scheduler.Internal {
		go scheduler.Run(ctx)
		go runDailyJobs(ctx, log, rollups, store, cfg.Database.RetentionDays)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runDailyJobs fires the rollup and the raw-check retention purge once
// per UTC day, shortly after midnight.
func runDailyJobs(ctx context.Context, log *slog.Logger, rollups *rollup.Runner,
	store storage.Store, retentionDays int) {

	for {
		now := time.Now().Unix()
		next := timeutil.DayStart(now) + timeutil.Day + 30
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(next-now) * time.Second):
		}

		jobCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		if err := rollups.Run(jobCtx); err != nil {
			log.Error("daily rollup", "error", err)
		}

		cutoff := timeutil.DayStart(time.Now().Unix()) - int64(retentionDays)*timeutil.Day
		if purged, err := store.PurgeChecksBefore(jobCtx, cutoff); err != nil {
			log.Error("retention purge", "error", err)
		} else if purged > 0 {
			log.Info("retention purge", "rows", purged, "cutoff", cutoff)
		}
		cancel()
	}
}

func newLogger(cfg config.Logging) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
