package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orcheo/engine/internal/agent"
	"github.com/orcheo/engine/internal/bus"
	"github.com/orcheo/engine/internal/domain"
	"github.com/orcheo/engine/internal/store"
)

var errTestFailure = errors.New("test failure")

// countingAgent is a deterministic test agent: it succeeds after a fixed
// number of failures, letting tests exercise the retry path without real
// I/O or sleeps of meaningful duration.
type countingAgent struct {
	agentType   string
	failUntil   int
	invocations map[uuid.UUID]int
}

func newCountingAgent(agentType string, failUntil int) *countingAgent {
	return &countingAgent{agentType: agentType, failUntil: failUntil, invocations: make(map[uuid.UUID]int)}
}

func (c *countingAgent) Type() string { return c.agentType }

func (c *countingAgent) Run(ctx context.Context, in agent.Input, log agent.LogSink) (agent.Result, error) {
	c.invocations[in.TaskID]++
	if c.invocations[in.TaskID] <= c.failUntil {
		return agent.Result{}, agent.Transient(errTestFailure)
	}
	return agent.Result{Summary: "ok:" + in.Prompt}, nil
}

func waitForTerminal(t *testing.T, s store.Store, actionID uuid.UUID, timeout time.Duration) *domain.Action {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		a, err := s.GetAction(context.Background(), actionID)
		require.NoError(t, err)
		if a.IsFinished() {
			return a
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("action %s did not reach a terminal status within %s", actionID, timeout)
	return nil
}

func TestExecutor_RunsChainToCompletion(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	b := bus.New(16)
	reg := agent.NewRegistry()
	reg.Register(agent.NewGeneric())

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)

	tasks, err := s.CreateTasks(ctx, action.ID, []domain.TaskSpec{
		{Prompt: "first", AgentType: agent.GenericType},
	})
	require.NoError(t, err)
	first := tasks[0]

	_, err = s.CreateTasks(ctx, action.ID, []domain.TaskSpec{
		{Prompt: "second", AgentType: agent.GenericType, Dependencies: []uuid.UUID{first.ID}},
	})
	require.NoError(t, err)

	exec := New(Config{Store: s, Bus: b, Registry: reg, TaskTimeout: time.Second})
	require.NoError(t, exec.Run(ctx, action.ID))

	finalAction := waitForTerminal(t, s, action.ID, 2*time.Second)
	require.Equal(t, domain.ActionStatusCompleted, finalAction.Status)

	all, err := s.ListTasks(ctx, action.ID)
	require.NoError(t, err)
	for _, tk := range all {
		require.Equal(t, domain.TaskStatusCompleted, tk.Status)
	}
}

func TestExecutor_RetriesTransientFailureThenSucceeds(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	b := bus.New(16)
	reg := agent.NewRegistry()
	flaky := newCountingAgent("flaky", 2)
	reg.Register(flaky)

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)
	_, err = s.CreateTasks(ctx, action.ID, []domain.TaskSpec{{Prompt: "x", AgentType: "flaky"}})
	require.NoError(t, err)

	exec := New(Config{
		Store: s, Bus: b, Registry: reg,
		MaxAttempts: 5, TaskTimeout: time.Second,
		BackoffBase: time.Millisecond, BackoffMax: 5 * time.Millisecond,
	})
	require.NoError(t, exec.Run(ctx, action.ID))

	finalAction := waitForTerminal(t, s, action.ID, 2*time.Second)
	require.Equal(t, domain.ActionStatusCompleted, finalAction.Status)
}

func TestExecutor_PermanentFailureFailsAction(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	b := bus.New(16)
	reg := agent.NewRegistry()
	reg.Register(&permanentFailAgent{})

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)
	_, err = s.CreateTasks(ctx, action.ID, []domain.TaskSpec{{Prompt: "x", AgentType: "always_fails"}})
	require.NoError(t, err)

	exec := New(Config{Store: s, Bus: b, Registry: reg, TaskTimeout: time.Second})
	require.NoError(t, exec.Run(ctx, action.ID))

	finalAction := waitForTerminal(t, s, action.ID, 2*time.Second)
	require.Equal(t, domain.ActionStatusFailed, finalAction.Status)
}

type permanentFailAgent struct{}

func (p *permanentFailAgent) Type() string { return "always_fails" }
func (p *permanentFailAgent) Run(ctx context.Context, in agent.Input, log agent.LogSink) (agent.Result, error) {
	return agent.Result{}, agent.Permanent(errTestFailure)
}

// switchableAgent fails permanently until told to succeed, letting a test
// simulate an operator fixing the underlying cause before retrying.
type switchableAgent struct {
	succeed bool
}

func (s *switchableAgent) Type() string { return "switchable" }
func (s *switchableAgent) Run(ctx context.Context, in agent.Input, log agent.LogSink) (agent.Result, error) {
	if !s.succeed {
		return agent.Result{}, agent.Permanent(errTestFailure)
	}
	return agent.Result{Summary: "ok:" + in.Prompt}, nil
}

func TestExecutor_RetryResetsFailedTasksAndReruns(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	b := bus.New(16)
	reg := agent.NewRegistry()
	sw := &switchableAgent{}
	reg.Register(sw)

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)
	_, err = s.CreateTasks(ctx, action.ID, []domain.TaskSpec{{Prompt: "x", AgentType: "switchable"}})
	require.NoError(t, err)

	exec := New(Config{Store: s, Bus: b, Registry: reg, TaskTimeout: time.Second})
	require.NoError(t, exec.Run(ctx, action.ID))
	waitForTerminal(t, s, action.ID, 2*time.Second)

	failedAction, err := s.GetAction(ctx, action.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActionStatusFailed, failedAction.Status)

	// Retrying before fixing the cause is a no-op error in this test's
	// setup only insofar as the task is still failed; flip the agent to
	// succeed first, matching an operator who fixed the root cause.
	sw.succeed = true
	require.NoError(t, exec.Retry(ctx, action.ID))

	finalAction := waitForTerminal(t, s, action.ID, 2*time.Second)
	require.Equal(t, domain.ActionStatusCompleted, finalAction.Status)
	require.Equal(t, 1, finalAction.Attempt)
}

func TestExecutor_RetryWithNoFailedTasksReturnsError(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	b := bus.New(16)
	reg := agent.NewRegistry()
	reg.Register(agent.NewGeneric())

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)
	_, err = s.CreateTasks(ctx, action.ID, []domain.TaskSpec{{Prompt: "x", AgentType: agent.GenericType}})
	require.NoError(t, err)

	exec := New(Config{Store: s, Bus: b, Registry: reg, TaskTimeout: time.Second})
	require.NoError(t, exec.Run(ctx, action.ID))
	waitForTerminal(t, s, action.ID, 2*time.Second)

	require.ErrorIs(t, exec.Retry(ctx, action.ID), ErrNothingToRetry)
}

func TestExecutor_RunIsIdempotentWhileActive(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	b := bus.New(16)
	reg := agent.NewRegistry()
	reg.Register(agent.NewDelay())

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)
	_, err = s.CreateTasks(ctx, action.ID, []domain.TaskSpec{{Prompt: "200", AgentType: "delay"}})
	require.NoError(t, err)

	exec := New(Config{Store: s, Bus: b, Registry: reg, TaskTimeout: time.Second})
	require.NoError(t, exec.Run(ctx, action.ID))
	require.ErrorIs(t, exec.Run(ctx, action.ID), ErrAlreadyRunning)

	waitForTerminal(t, s, action.ID, 2*time.Second)
}
