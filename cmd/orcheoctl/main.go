// Command orcheoctl is a direct-to-store operator CLI: since this
// repository does not implement an HTTP transport (SPEC_FULL.md §6),
// orcheoctl talks to the same Store/Executor/Planner/Mutation types
// orcheod wires, rather than an HTTP client — the teacher's cli.Client
// (an HTTP wrapper) has no transport to wrap here.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/orcheo/engine/internal/agent"
	"github.com/orcheo/engine/internal/bus"
	"github.com/orcheo/engine/internal/config"
	"github.com/orcheo/engine/internal/executor"
	"github.com/orcheo/engine/internal/store"
	"github.com/orcheo/engine/internal/telemetry"
)

var version = "dev"

// env bundles everything a subcommand needs; each command's RunE builds
// its own with buildEnv, so one store connection and executor serve that
// command.
type env struct {
	store    store.Store
	bus      *bus.Bus
	exec     *executor.Executor
	registry *agent.Registry
	cfg      config.Config
	logger   *slog.Logger
	out      *output
}

func buildEnv(jsonMode bool) (*env, func(), error) {
	ctx := context.Background()
	logger := telemetry.SetupLogger()

	cfgLoader, err := config.NewLoader(os.Getenv("ORCHEO_CONFIG_FILE"), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	cfg := cfgLoader.Get()

	var s store.Store
	closeFn := func() {}
	if dsn := os.Getenv("ORCHEO_DB_URL"); dsn != "" {
		pool, err := store.NewPool(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		pg := store.NewPostgres(pool)
		s = pg
		closeFn = func() { _ = pg.Close(ctx) }
	} else {
		s = store.NewMemory()
	}

	b := bus.New(cfg.EventQueueCapacity)
	reg := agent.DefaultRegistry()
	exec := executor.New(executor.Config{
		Store:       s,
		Bus:         b,
		Registry:    reg,
		MaxInflight: cfg.MaxConcurrentTasksPerAction,
		MaxAttempts: cfg.TaskRetryMaxAttempts,
		TaskTimeout: cfg.TaskTimeout(),
		BackoffBase: cfg.BaseBackoff(),
		Logger:      logger,
	})

	return &env{
		store:    s,
		bus:      b,
		exec:     exec,
		registry: reg,
		cfg:      cfg,
		logger:   logger,
		out:      &output{jsonMode: jsonMode},
	}, closeFn, nil
}

func main() {
	var jsonMode bool

	rootCmd := &cobra.Command{
		Use:           "orcheoctl",
		Short:         "orcheoctl — operate actions and tasks directly against the engine store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&jsonMode, "json", false, "output in JSON format")

	rootCmd.AddCommand(
		newActionCmd(&jsonMode),
		newTaskCmd(&jsonMode),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
