package mutation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orcheo/engine/internal/bus"
	"github.com/orcheo/engine/internal/domain"
	"github.com/orcheo/engine/internal/store"
)

// noopRunController satisfies runController for tests that don't exercise
// a live executor.
type noopRunController struct {
	canceled map[uuid.UUID]bool
	woken    bool
}

func newNoopRunController() *noopRunController {
	return &noopRunController{canceled: make(map[uuid.UUID]bool)}
}

func (n *noopRunController) Wake(uuid.UUID)              { n.woken = true }
func (n *noopRunController) CancelTask(_, taskID uuid.UUID) { n.canceled[taskID] = true }
func (n *noopRunController) IsRunning(uuid.UUID) bool    { return false }

func TestEngine_EditInvalidatesTransitiveDependents(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	runs := newNoopRunController()
	e := New(s, bus.New(16), runs)

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)

	tasks, err := s.CreateTasks(ctx, action.ID, []domain.TaskSpec{{Prompt: "a", AgentType: "generic"}})
	require.NoError(t, err)
	a := tasks[0]

	tasks, err = s.CreateTasks(ctx, action.ID, []domain.TaskSpec{
		{Prompt: "b", AgentType: "generic", Dependencies: []uuid.UUID{a.ID}},
	})
	require.NoError(t, err)
	bTask := tasks[0]

	tasks, err = s.CreateTasks(ctx, action.ID, []domain.TaskSpec{
		{Prompt: "c", AgentType: "generic", Dependencies: []uuid.UUID{bTask.ID}},
	})
	require.NoError(t, err)
	cTask := tasks[0]

	// Mark all three completed directly via the store, simulating a
	// finished run, then edit the root task.
	for _, tk := range []*domain.Task{a, bTask, cTask} {
		token, ok, err := s.ClaimTask(ctx, tk.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, s.CompleteTask(ctx, tk.ID, token, domain.TaskOutput{Summary: "done"}))
	}

	newPrompt := "a-revised"
	_, err = e.Edit(ctx, action.ID, a.ID, domain.TaskPatch{Prompt: &newPrompt})
	require.NoError(t, err)

	for _, id := range []uuid.UUID{a.ID, bTask.ID, cTask.ID} {
		got, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.TaskStatusPending, got.Status, "task %s should be reset to pending", id)
	}

	got, err := s.GetTask(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, newPrompt, got.Prompt)
}

func TestEngine_AddDoesNotInvalidateAnything(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	runs := newNoopRunController()
	e := New(s, bus.New(16), runs)

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)

	added, err := e.Add(ctx, action.ID, domain.TaskSpec{Prompt: "new", AgentType: "generic"})
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusPending, added.Status)
	require.True(t, runs.woken)
}

func TestEngine_DeleteRejectsWhenTaskHasDependents(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	runs := newNoopRunController()
	e := New(s, bus.New(16), runs)

	action, err := s.CreateAction(ctx, "t", "root")
	require.NoError(t, err)

	tasks, err := s.CreateTasks(ctx, action.ID, []domain.TaskSpec{{Prompt: "a", AgentType: "generic"}})
	require.NoError(t, err)
	a := tasks[0]

	_, err = s.CreateTasks(ctx, action.ID, []domain.TaskSpec{
		{Prompt: "b", AgentType: "generic", Dependencies: []uuid.UUID{a.ID}},
	})
	require.NoError(t, err)

	err = e.Delete(ctx, action.ID, a.ID)
	require.ErrorIs(t, err, domain.ErrTaskHasDependents)
}
