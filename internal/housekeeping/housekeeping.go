// Package housekeeping runs the engine's two background maintenance
// jobs: a per-task log retention sweep (log_retention_per_task, §6) on
// a robfig/cron schedule, and a bus keepalive ping (the `ping` event of
// §4.1) every 15 seconds on a ticker so idle SSE connections see traffic.
// Grounded on the teacher's internal/scheduler package (a cron-driven
// sweep loop over the store), adapted from "find and dispatch due runs"
// to "trim logs and ping live topics".
package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/orcheo/engine/internal/bus"
	"github.com/orcheo/engine/internal/store"
)

// keepaliveInterval is the keepalive ping period. cron/v3's default
// parser is minute-granularity, so the ping runs on its own time.Ticker
// in keepaliveLoop instead of as a cron job.
const keepaliveInterval = 15 * time.Second

// Config controls the Sweeper's schedule and retention ceiling.
type Config struct {
	Store             store.Store
	Bus               *bus.Bus
	Logger            *slog.Logger
	LogRetentionSweep string // cron expression, default "*/5 * * * *"
	LogRetentionKeep  int    // default 1000
}

// Sweeper owns a cron.Cron instance running the log retention sweep and
// a separate ticker-driven keepalive ping loop.
type Sweeper struct {
	cfg Config
	cron *cron.Cron
	stop chan struct{}
}

// New constructs a Sweeper; call Start to begin running jobs.
func New(cfg Config) *Sweeper {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LogRetentionSweep == "" {
		cfg.LogRetentionSweep = "*/5 * * * *"
	}
	if cfg.LogRetentionKeep <= 0 {
		cfg.LogRetentionKeep = 1000
	}
	return &Sweeper{cfg: cfg, cron: cron.New(), stop: make(chan struct{})}
}

// Start registers the retention sweep with the cron scheduler, starts
// it, and launches the keepalive ping loop in a background goroutine.
// Start is not safe to call more than once.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.LogRetentionSweep, func() {
		s.sweepLogs(ctx)
	})
	if err != nil {
		return fmt.Errorf("housekeeping: schedule log sweep: %w", err)
	}
	s.cron.Start()

	go s.keepaliveLoop(ctx)
	return nil
}

// Stop halts the cron scheduler and the keepalive loop, waiting for any
// in-flight job to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

func (s *Sweeper) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now().UTC()
			for _, actionID := range s.cfg.Bus.Topics() {
				s.cfg.Bus.Publish(actionID, bus.KindPing, map[string]any{"ts": now})
			}
		}
	}
}

// sweepLogs trims every action's tasks down to LogRetentionKeep rows
// each. Errors on one action or task are logged and do not stop the
// sweep from continuing to the rest.
func (s *Sweeper) sweepLogs(ctx context.Context) {
	actions, err := s.cfg.Store.ListActions(ctx, store.ActionFilter{})
	if err != nil {
		s.cfg.Logger.Error("housekeeping: list actions for log sweep failed", "error", err)
		return
	}

	trimmed := 0
	for _, action := range actions {
		tasks, err := s.cfg.Store.ListTasks(ctx, action.ID)
		if err != nil {
			s.cfg.Logger.Error("housekeeping: list tasks for log sweep failed",
				"action_id", action.ID, "error", err)
			continue
		}
		for _, task := range tasks {
			if err := s.cfg.Store.TrimLogs(ctx, task.ID, s.cfg.LogRetentionKeep); err != nil {
				s.cfg.Logger.Error("housekeeping: trim logs failed",
					"task_id", task.ID, "error", err)
				continue
			}
			trimmed++
		}
	}
	s.cfg.Logger.Debug("housekeeping: log sweep complete", "tasks_checked", trimmed)
}
