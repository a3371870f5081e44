// Package planner implements §4.3: converting a root prompt into a
// validated task DAG via an external structured-output LLM call, with a
// corrective retry loop and a deterministic single-task fallback.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/orcheo/engine/internal/agent"
	"github.com/orcheo/engine/internal/domain"
	"github.com/orcheo/engine/internal/store"
	"github.com/orcheo/engine/internal/telemetry"
)

const (
	defaultMaxTasks   = 50
	defaultMaxRetries = 2
)

// Config controls a Planner's validation ceilings and retry budget.
type Config struct {
	MaxTasks   int
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.MaxTasks <= 0 {
		c.MaxTasks = defaultMaxTasks
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// Planner turns a root prompt into a persisted task DAG for one action,
// delegating the actual completion call to a Provider.
type Planner struct {
	provider Provider
	registry *agent.Registry
	cfg      Config
}

// New constructs a Planner. registry is used to resolve unknown
// agent_type values to the generic fallback (§4.3 rule 1); it may be nil
// in tests that don't care about type resolution.
func New(provider Provider, registry *agent.Registry, cfg Config) *Planner {
	return &Planner{provider: provider, registry: registry, cfg: cfg.withDefaults()}
}

// Plan produces a validated set of ValidatedTask proposals for
// rootPrompt, retrying with a corrective prompt on invalid output or
// provider error, and falling back to a single generic task once
// MaxRetries is exhausted (§4.3 Retry policy).
func (p *Planner) Plan(ctx context.Context, rootPrompt string, existing []ExistingTask) []ValidatedTask {
	log := telemetry.FromContext(ctx)
	req := CompletionRequest{RootPrompt: rootPrompt, ExistingTasks: existing}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			req.CorrectiveNote = correctiveNote(lastErr)
			telemetry.PlannerRetriesTotal.Inc()
			log.Warn("planner retrying after invalid output",
				"attempt", attempt, "reason", lastErr)
		}

		resp, err := p.provider.Complete(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}

		tasks, err := validate(resp, p.registry, p.cfg.MaxTasks)
		if err != nil {
			lastErr = err
			continue
		}
		return tasks
	}

	log.Error("planner exhausted retries, falling back to single generic task", "last_error", lastErr)
	telemetry.PlannerFallbacksTotal.Inc()
	return []ValidatedTask{{Prompt: rootPrompt, AgentType: agent.GenericType}}
}

// correctiveNote renders the follow-up prompt appended on retry,
// naming what was wrong with the previous attempt (§4.3 retry policy).
func correctiveNote(cause error) string {
	switch {
	case errors.Is(cause, ErrForwardReference):
		return "Output a valid acyclic DAG: every task's dependencies must be indices strictly less than its own position in the list."
	case errors.Is(cause, ErrTooManyTasks):
		return "Output fewer tasks: the previous plan exceeded the task count limit."
	case errors.Is(cause, ErrEmptyTaskPrompt), errors.Is(cause, ErrEmptyPlan):
		return "Output a non-empty list of tasks, each with a non-empty prompt."
	case errors.Is(cause, ErrSchemaMismatch):
		return "Output must be a JSON object with a \"tasks\" array, each item carrying prompt, agent_type and dependencies."
	default:
		return "Output a valid acyclic DAG, matching the required task-list shape."
	}
}

// Materialize persists proposals for actionID in order, resolving each
// task's DependencyIndices against the real ids already assigned to
// earlier tasks in the same slice — proposals are guaranteed
// index-backward by validate, so by the time task i is created every id
// it depends on already exists.
func Materialize(ctx context.Context, s store.Store, actionID uuid.UUID, proposals []ValidatedTask) ([]*domain.Task, error) {
	ids := make([]uuid.UUID, len(proposals))
	created := make([]*domain.Task, len(proposals))

	for i, t := range proposals {
		deps := make([]uuid.UUID, len(t.DependencyIndices))
		for j, d := range t.DependencyIndices {
			deps[j] = ids[d]
		}

		tasks, err := s.CreateTasks(ctx, actionID, []domain.TaskSpec{{
			Prompt:       t.Prompt,
			AgentType:    t.AgentType,
			Model:        t.Model,
			Dependencies: deps,
		}})
		if err != nil {
			return nil, fmt.Errorf("materialize task %d: %w", i, err)
		}
		created[i] = tasks[0]
		ids[i] = tasks[0].ID
	}
	return created, nil
}
