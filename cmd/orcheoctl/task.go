package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/orcheo/engine/internal/domain"
	"github.com/orcheo/engine/internal/mutation"
)

func newTaskCmd(jsonMode *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Edit, reset or delete individual tasks within an action",
	}
	cmd.AddCommand(
		newTaskAddCmd(jsonMode),
		newTaskEditCmd(jsonMode),
		newTaskResetCmd(jsonMode),
		newTaskDeleteCmd(jsonMode),
	)
	return cmd
}

func newTaskAddCmd(jsonMode *bool) *cobra.Command {
	var agentType string
	var deps []string
	cmd := &cobra.Command{
		Use:   "add <action-id> <prompt>",
		Short: "Add a new pending task to an action",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			e, closeFn, err := buildEnv(*jsonMode)
			if err != nil {
				return err
			}
			defer closeFn()

			actionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid action id: %w", err)
			}
			depIDs, err := parseUUIDs(deps)
			if err != nil {
				return err
			}

			eng := mutation.New(e.store, e.bus, e.exec)
			task, err := eng.Add(context.Background(), actionID, domain.TaskSpec{
				Prompt: args[1], AgentType: agentType, Dependencies: depIDs,
			})
			if err != nil {
				return err
			}
			e.out.print([]string{"TASK_ID", "STATUS"}, [][]string{{task.ID.String(), string(task.Status)}}, task)
			return nil
		},
	}
	cmd.Flags().StringVar(&agentType, "agent-type", "generic", "agent_type for the new task")
	cmd.Flags().StringSliceVar(&deps, "dep", nil, "dependency task id (repeatable)")
	return cmd
}

func newTaskEditCmd(jsonMode *bool) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "edit <action-id> <task-id>",
		Short: "Edit a task's prompt, invalidating it and its transitive dependents",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			e, closeFn, err := buildEnv(*jsonMode)
			if err != nil {
				return err
			}
			defer closeFn()

			actionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid action id: %w", err)
			}
			taskID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid task id: %w", err)
			}

			patch := domain.TaskPatch{}
			if prompt != "" {
				patch.Prompt = &prompt
			}

			eng := mutation.New(e.store, e.bus, e.exec)
			task, err := eng.Edit(context.Background(), actionID, taskID, patch)
			if err != nil {
				return err
			}
			e.out.print([]string{"TASK_ID", "STATUS"}, [][]string{{task.ID.String(), string(task.Status)}}, task)
			return nil
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "new prompt text")
	return cmd
}

func newTaskResetCmd(jsonMode *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <action-id> <task-id>",
		Short: "Force a task (and its transitive dependents) to re-run",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			e, closeFn, err := buildEnv(*jsonMode)
			if err != nil {
				return err
			}
			defer closeFn()

			actionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid action id: %w", err)
			}
			taskID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid task id: %w", err)
			}

			eng := mutation.New(e.store, e.bus, e.exec)
			if err := eng.Reset(context.Background(), actionID, taskID); err != nil {
				return err
			}
			e.out.print(nil, nil, map[string]any{"task_id": taskID, "status": "reset"})
			return nil
		},
	}
}

func newTaskDeleteCmd(jsonMode *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <action-id> <task-id>",
		Short: "Delete a task; fails if another task still depends on it",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			e, closeFn, err := buildEnv(*jsonMode)
			if err != nil {
				return err
			}
			defer closeFn()

			actionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid action id: %w", err)
			}
			taskID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid task id: %w", err)
			}

			eng := mutation.New(e.store, e.bus, e.exec)
			if err := eng.Delete(context.Background(), actionID, taskID); err != nil {
				return err
			}
			e.out.print(nil, nil, map[string]any{"task_id": taskID, "status": "deleted"})
			return nil
		},
	}
}

func parseUUIDs(ss []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(ss))
	for i, s := range ss {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid dependency id %q: %w", s, err)
		}
		out[i] = id
	}
	return out, nil
}
