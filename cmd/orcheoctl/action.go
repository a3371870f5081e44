package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/orcheo/engine/internal/domain"
	"github.com/orcheo/engine/internal/planner"
	"github.com/orcheo/engine/internal/store"
	"github.com/orcheo/engine/internal/telemetry"
)

// defaultWaitPollInterval is how often `action run`/`retry` poll the store
// while blocking for a terminal status.
const defaultWaitPollInterval = 100 * time.Millisecond

func newActionCmd(jsonMode *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Manage actions",
	}
	cmd.AddCommand(
		newActionPlanCmd(jsonMode),
		newActionListCmd(jsonMode),
		newActionShowCmd(jsonMode),
		newActionRunCmd(jsonMode),
		newActionRetryCmd(jsonMode),
		newActionWatchCmd(jsonMode),
	)
	return cmd
}

func newActionPlanCmd(jsonMode *bool) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "plan <root-prompt>",
		Short: "Plan a new action from a root prompt and materialize its task DAG",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			e, closeFn, err := buildEnv(*jsonMode)
			if err != nil {
				return err
			}
			defer closeFn()
			ctx := context.Background()

			rootPrompt := args[0]
			if title == "" {
				title = rootPrompt
			}

			action, err := e.store.CreateAction(ctx, title, rootPrompt)
			if err != nil {
				return fmt.Errorf("create action: %w", err)
			}

			prov, err := defaultPlannerProvider()
			if err != nil {
				return fmt.Errorf("no planner provider configured: %w", err)
			}
			p := planner.New(prov, e.registry, planner.Config{
				MaxTasks:   e.cfg.PlannerMaxTasks,
				MaxRetries: e.cfg.PlannerMaxRetries,
			})
			ctx = telemetry.WithLogger(ctx, e.logger)
			proposals := p.Plan(ctx, rootPrompt, nil)

			tasks, err := planner.Materialize(ctx, e.store, action.ID, proposals)
			if err != nil {
				return fmt.Errorf("materialize plan: %w", err)
			}

			e.out.print(
				[]string{"ACTION_ID", "TASK_COUNT"},
				[][]string{{action.ID.String(), fmt.Sprint(len(tasks))}},
				map[string]any{"action_id": action.ID, "tasks": tasks},
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "action title (defaults to the root prompt)")
	return cmd
}

func newActionListCmd(jsonMode *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List actions",
		RunE: func(_ *cobra.Command, _ []string) error {
			e, closeFn, err := buildEnv(*jsonMode)
			if err != nil {
				return err
			}
			defer closeFn()

			actions, err := e.store.ListActions(context.Background(), store.ActionFilter{})
			if err != nil {
				return err
			}

			rows := make([][]string, len(actions))
			for i, a := range actions {
				rows[i] = []string{a.ID.String(), a.Title, string(a.Status), a.CreatedAt.Format("2006-01-02T15:04:05Z07:00")}
			}
			e.out.print([]string{"ID", "TITLE", "STATUS", "CREATED"}, rows, actions)
			return nil
		},
	}
}

func newActionShowCmd(jsonMode *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <action-id>",
		Short: "Show one action and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			e, closeFn, err := buildEnv(*jsonMode)
			if err != nil {
				return err
			}
			defer closeFn()
			ctx := context.Background()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid action id: %w", err)
			}
			action, err := e.store.GetAction(ctx, id)
			if err != nil {
				return err
			}
			tasks, err := e.store.ListTasks(ctx, id)
			if err != nil {
				return err
			}

			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.ID.String(), t.AgentType, string(t.Status), t.OutputSummary}
			}
			e.out.print([]string{"TASK_ID", "AGENT_TYPE", "STATUS", "OUTPUT"}, rows,
				map[string]any{"action": action, "tasks": tasks})
			return nil
		},
	}
}

func newActionRunCmd(jsonMode *bool) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "run <action-id>",
		Short: "Start (or resume) execution of an action's task graph and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			e, closeFn, err := buildEnv(*jsonMode)
			if err != nil {
				return err
			}
			defer closeFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid action id: %w", err)
			}
			ctx := context.Background()
			if err := e.exec.Run(ctx, id); err != nil {
				return err
			}
			return e.awaitTerminal(ctx, id, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "how long to wait for the action to reach a terminal status")
	return cmd
}

func newActionRetryCmd(jsonMode *bool) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "retry <action-id>",
		Short: "Reset an action's failed tasks, start another run and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			e, closeFn, err := buildEnv(*jsonMode)
			if err != nil {
				return err
			}
			defer closeFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid action id: %w", err)
			}
			ctx := context.Background()
			if err := e.exec.Retry(ctx, id); err != nil {
				return err
			}
			return e.awaitTerminal(ctx, id, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "how long to wait for the action to reach a terminal status")
	return cmd
}

// awaitTerminal blocks until id reaches a terminal status or timeout
// elapses, polling the store the same way executor_test.go's
// waitForTerminal does. Without this, the command would return the
// instant the scheduling goroutine was launched, and its deferred
// closeFn would tear down the store out from under that goroutine.
func (e *env) awaitTerminal(ctx context.Context, id uuid.UUID, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var action *domain.Action
	for time.Now().Before(deadline) {
		a, err := e.store.GetAction(ctx, id)
		if err != nil {
			return fmt.Errorf("poll action status: %w", err)
		}
		if a.IsFinished() {
			action = a
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultWaitPollInterval):
		}
	}
	if action == nil {
		return fmt.Errorf("action %s did not reach a terminal status within %s", id, timeout)
	}

	e.out.print(nil, nil, map[string]any{"action_id": id, "status": string(action.Status)})
	if action.Status == domain.ActionStatusFailed {
		return fmt.Errorf("action %s finished with status failed", id)
	}
	return nil
}
