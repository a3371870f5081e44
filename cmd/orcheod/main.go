// Command orcheod is the engine daemon: it owns the graph store, the
// event bus, the agent registry, the executor and the housekeeping
// sweep for every action running in this process. No HTTP transport is
// implemented here — see SPEC_FULL.md §6 — only the /healthz and
// /metrics ambient endpoints the teacher's binaries expose.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orcheo/engine/internal/agent"
	"github.com/orcheo/engine/internal/bus"
	"github.com/orcheo/engine/internal/config"
	"github.com/orcheo/engine/internal/domain"
	"github.com/orcheo/engine/internal/executor"
	"github.com/orcheo/engine/internal/housekeeping"
	"github.com/orcheo/engine/internal/store"
	"github.com/orcheo/engine/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting orcheod")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "orcheod")
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = shutdownTracing(shutCtx)
	}()

	cfgLoader, err := config.NewLoader(os.Getenv("ORCHEO_CONFIG_FILE"), logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := cfgLoader.Get()

	s, closeStore := openStore(ctx, logger)
	defer closeStore()

	blobs, err := store.OpenBlobStore(blobPath())
	if err != nil {
		logger.Error("failed to open blob store", "error", err)
		os.Exit(1)
	}

	eventBus := bus.New(cfg.EventQueueCapacity)
	registry := defaultRegistry(logger)

	exec := executor.New(executor.Config{
		Store:       s,
		Bus:         eventBus,
		Registry:    registry,
		Blobs:       blobs,
		MaxInflight: cfg.MaxConcurrentTasksPerAction,
		MaxAttempts: cfg.TaskRetryMaxAttempts,
		TaskTimeout: cfg.TaskTimeout(),
		BackoffBase: cfg.BaseBackoff(),
		Logger:      logger,
	})

	resumeActiveActions(ctx, s, exec, logger)

	sweeper := housekeeping.New(housekeeping.Config{
		Store:            s,
		Bus:              eventBus,
		Logger:           logger,
		LogRetentionKeep: cfg.LogRetentionPerTask,
	})
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("failed to start housekeeping sweeper", "error", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":8090"
	if v := os.Getenv("ORCHEOD_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("orcheod stopped")
}

func openStore(ctx context.Context, logger interface {
	Info(string, ...any)
	Warn(string, ...any)
}) (store.Store, func()) {
	dsn := os.Getenv("ORCHEO_DB_URL")
	if dsn == "" {
		logger.Warn("ORCHEO_DB_URL not set, using in-memory store")
		return store.NewMemory(), func() {}
	}

	pool, err := store.NewPool(ctx, dsn)
	if err != nil {
		logger.Warn("failed to connect to postgres, falling back to in-memory store", "error", err)
		return store.NewMemory(), func() {}
	}
	pg := store.NewPostgres(pool)
	logger.Info("connected to postgres")
	return pg, func() { _ = pg.Close(ctx) }
}

func blobPath() string {
	if v := os.Getenv("ORCHEO_BLOB_PATH"); v != "" {
		return v
	}
	return "orcheo-artifacts.db"
}

// defaultRegistry builds the agent registry, adding the Docker-backed
// code_execution agent only if a daemon is reachable — its absence
// should not prevent the rest of the engine from starting.
func defaultRegistry(logger interface{ Warn(string, ...any) }) *agent.Registry {
	reg, err := agent.DefaultRegistryWithDocker()
	if err != nil {
		logger.Warn("docker unavailable, code_execution agent disabled", "error", err)
		return agent.DefaultRegistry()
	}
	return reg
}

// resumeActiveActions restarts the scheduling loop for every action this
// process's store still records as running — e.g. after a daemon restart
// while an action was mid-flight. This is the daemon's one real entry
// point into Executor.Run: unlike Add/Edit/Delete/Reset or planning a new
// action, resuming work already marked running needs no operator input,
// so the long-lived daemon can own it outright.
func resumeActiveActions(ctx context.Context, s store.Store, exec *executor.Executor, logger *slog.Logger) {
	running := domain.ActionStatusRunning
	actions, err := s.ListActions(ctx, store.ActionFilter{Status: &running})
	if err != nil {
		logger.Error("failed to list actions to resume", "error", err)
		return
	}
	for _, a := range actions {
		if err := exec.Run(ctx, a.ID); err != nil && !errors.Is(err, executor.ErrAlreadyRunning) {
			logger.Error("failed to resume action", "action_id", a.ID, "error", err)
		}
	}
}
