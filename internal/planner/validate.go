package planner

import (
	"fmt"

	"github.com/orcheo/engine/internal/agent"
)

// ValidatedTask is one provider task proposal after the §4.3 validation
// rules have run: agent_type resolved against the registry and
// dependencies confirmed to be strictly-backward indices. Dependencies
// are left as indices (not uuids) because the real task ids don't exist
// until the caller persists each task in order — see Materialize.
type ValidatedTask struct {
	Prompt            string
	AgentType         string
	Model             string
	DependencyIndices []int
}

// validate applies the three §4.3 validation rules, in order, against a
// provider's raw plan and resolves unknown agent types to the generic
// fallback (rule 1).
func validate(plan PlanResponse, registry *agent.Registry, maxTasks int) ([]ValidatedTask, error) {
	if len(plan.Tasks) == 0 {
		return nil, ErrEmptyPlan
	}

	for i, t := range plan.Tasks {
		if t.Prompt == "" {
			return nil, fmt.Errorf("%w: task %d", ErrEmptyTaskPrompt, i)
		}
		for _, d := range t.Dependencies {
			if d < 0 || d >= i {
				return nil, fmt.Errorf("%w: task %d depends on index %d", ErrForwardReference, i, d)
			}
		}
	}

	if len(plan.Tasks) > maxTasks {
		return nil, fmt.Errorf("%w: %d tasks, max %d", ErrTooManyTasks, len(plan.Tasks), maxTasks)
	}

	out := make([]ValidatedTask, len(plan.Tasks))
	for i, t := range plan.Tasks {
		agentType := t.AgentType
		if registry != nil && !registry.Has(agentType) {
			agentType = agent.GenericType
		}
		out[i] = ValidatedTask{
			Prompt:            t.Prompt,
			AgentType:         agentType,
			Model:             t.Model,
			DependencyIndices: t.Dependencies,
		}
	}
	return out, nil
}
