package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orcheo/engine/internal/agent"
	"github.com/orcheo/engine/internal/store"
)

// scriptedProvider replays a fixed sequence of responses/errors, one per
// Complete call, so tests can drive the retry loop deterministically.
type scriptedProvider struct {
	responses []PlanResponse
	errs      []error
	calls     int
}

func (s *scriptedProvider) Complete(_ context.Context, _ CompletionRequest) (PlanResponse, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return PlanResponse{}, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return PlanResponse{}, errors.New("scriptedProvider: out of responses")
}

func TestPlanner_ValidPlanOnFirstTry(t *testing.T) {
	reg := agent.NewRegistry()
	reg.Register(agent.NewGeneric())

	prov := &scriptedProvider{responses: []PlanResponse{{
		Tasks: []TaskProposal{
			{Prompt: "fetch", AgentType: agent.GenericType},
			{Prompt: "summarize", AgentType: agent.GenericType, Dependencies: []int{0}},
		},
	}}}

	p := New(prov, reg, Config{})
	tasks := p.Plan(context.Background(), "do the thing", nil)

	require.Len(t, tasks, 2)
	require.Equal(t, []int{0}, tasks[1].DependencyIndices)
	require.Equal(t, 1, prov.calls)
}

func TestPlanner_RetriesOnForwardReferenceThenSucceeds(t *testing.T) {
	reg := agent.NewRegistry()
	reg.Register(agent.NewGeneric())

	prov := &scriptedProvider{responses: []PlanResponse{
		{Tasks: []TaskProposal{{Prompt: "a", AgentType: agent.GenericType, Dependencies: []int{1}}}},
		{Tasks: []TaskProposal{{Prompt: "a", AgentType: agent.GenericType}}},
	}}

	p := New(prov, reg, Config{MaxRetries: 2})
	tasks := p.Plan(context.Background(), "do the thing", nil)

	require.Len(t, tasks, 1)
	require.Equal(t, 2, prov.calls)
}

func TestPlanner_FallsBackToSingleGenericTaskOnExhaustion(t *testing.T) {
	reg := agent.NewRegistry()
	reg.Register(agent.NewGeneric())

	prov := &scriptedProvider{errs: []error{
		errors.New("provider unavailable"),
		errors.New("provider unavailable"),
		errors.New("provider unavailable"),
	}}

	p := New(prov, reg, Config{MaxRetries: 2})
	tasks := p.Plan(context.Background(), "root instruction", nil)

	require.Len(t, tasks, 1)
	require.Equal(t, "root instruction", tasks[0].Prompt)
	require.Equal(t, agent.GenericType, tasks[0].AgentType)
	require.Equal(t, 3, prov.calls)
}

func TestPlanner_UnknownAgentTypeFallsBackToGeneric(t *testing.T) {
	reg := agent.NewRegistry()
	reg.Register(agent.NewGeneric())

	prov := &scriptedProvider{responses: []PlanResponse{{
		Tasks: []TaskProposal{{Prompt: "a", AgentType: "made_up_type"}},
	}}}

	p := New(prov, reg, Config{})
	tasks := p.Plan(context.Background(), "root", nil)

	require.Len(t, tasks, 1)
	require.Equal(t, agent.GenericType, tasks[0].AgentType)
}

func TestPlanner_TooManyTasksRejected(t *testing.T) {
	reg := agent.NewRegistry()
	reg.Register(agent.NewGeneric())

	many := make([]TaskProposal, 5)
	for i := range many {
		many[i] = TaskProposal{Prompt: "x", AgentType: agent.GenericType}
	}

	prov := &scriptedProvider{responses: []PlanResponse{
		{Tasks: many},
		{Tasks: []TaskProposal{{Prompt: "x", AgentType: agent.GenericType}}},
	}}

	p := New(prov, reg, Config{MaxTasks: 3, MaxRetries: 1})
	tasks := p.Plan(context.Background(), "root", nil)

	require.Len(t, tasks, 1)
	require.Equal(t, 2, prov.calls)
}

func TestMaterialize_ResolvesDependencyIndicesToRealIDs(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)

	proposals := []ValidatedTask{
		{Prompt: "first", AgentType: agent.GenericType},
		{Prompt: "second", AgentType: agent.GenericType, DependencyIndices: []int{0}},
	}

	created, err := Materialize(ctx, s, action.ID, proposals)
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Equal(t, []uuid.UUID{created[0].ID}, created[1].Dependencies)
}
