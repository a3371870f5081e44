// Package mutation implements the four live-edit operations of §4.5 —
// Add, Edit, Delete, Reset — each atomic with respect to the graph store
// and coordinated with the executor so invalidated in-flight work is
// cancelled and discarded rather than raced against.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orcheo/engine/internal/bus"
	"github.com/orcheo/engine/internal/domain"
	"github.com/orcheo/engine/internal/store"
)

// cancellationGrace bounds how long Edit/Delete/Reset wait for an
// in-flight task to observe cancellation before force-releasing its claim
// (§4.5 step 4: "bounded by a cancellation grace window, e.g., 5s").
const cancellationGrace = 5 * time.Second

// runController is the slice of *executor.Executor the mutation engine
// needs: waking a scheduling loop and cancelling one in-flight task.
// Declared as an interface here (rather than importing executor directly)
// so the two packages don't import each other.
type runController interface {
	Wake(actionID uuid.UUID)
	CancelTask(actionID, taskID uuid.UUID)
	IsRunning(actionID uuid.UUID) bool
}

// Engine applies Add/Edit/Delete/Reset against a Store, notifying a
// runController so an active run resumes scheduling against the new
// graph state.
type Engine struct {
	store store.Store
	bus   *bus.Bus
	runs  runController
}

// New constructs a mutation Engine.
func New(s store.Store, b *bus.Bus, runs runController) *Engine {
	return &Engine{store: s, bus: b, runs: runs}
}

// Add inserts a new task; dependencies are validated by the store, and no
// invalidation is needed since the new task starts pending.
func (e *Engine) Add(ctx context.Context, actionID uuid.UUID, spec domain.TaskSpec) (*domain.Task, error) {
	tasks, err := e.store.CreateTasks(ctx, actionID, []domain.TaskSpec{spec})
	if err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}
	e.runs.Wake(actionID)
	return tasks[0], nil
}

// Edit applies patch to taskID, then invalidates taskID and every
// transitive dependent (§4.5 steps 2-6).
func (e *Engine) Edit(ctx context.Context, actionID, taskID uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
	updated, err := e.store.UpdateTask(ctx, taskID, patch)
	if err != nil {
		return nil, fmt.Errorf("edit task: %w", err)
	}

	if err := e.invalidate(ctx, actionID, taskID); err != nil {
		return nil, err
	}

	return updated, nil
}

// Reset is an edit with an identity patch: it forces taskID (and its
// dependents) to re-run without changing its definition.
func (e *Engine) Reset(ctx context.Context, actionID, taskID uuid.UUID) error {
	return e.invalidate(ctx, actionID, taskID)
}

// Delete removes taskID. Per §4.5, delete is only valid if no other task
// depends on it — the store enforces this and returns
// domain.ErrTaskHasDependents otherwise; callers must edit dependents
// first (e.g. drop the dependency edge) before deleting.
func (e *Engine) Delete(ctx context.Context, actionID, taskID uuid.UUID) error {
	e.runs.CancelTask(actionID, taskID)
	if err := e.waitForRelease(ctx, taskID); err != nil {
		return err
	}

	if err := e.store.DeleteTask(ctx, taskID); err != nil {
		if errors.Is(err, domain.ErrTaskHasDependents) {
			return err
		}
		return fmt.Errorf("delete task: %w", err)
	}
	e.runs.Wake(actionID)
	return nil
}

// invalidate computes {taskID} ∪ transitive_dependents(taskID), cancels
// any member currently running, waits out the grace window, then resets
// the whole set to pending atomically.
func (e *Engine) invalidate(ctx context.Context, actionID, taskID uuid.UUID) error {
	dependents, err := e.store.Dependents(ctx, taskID)
	if err != nil {
		return fmt.Errorf("compute dependents: %w", err)
	}
	invalidationSet := append([]uuid.UUID{taskID}, dependents...)

	for _, id := range invalidationSet {
		e.runs.CancelTask(actionID, id)
	}
	for _, id := range invalidationSet {
		if err := e.waitForRelease(ctx, id); err != nil {
			return err
		}
	}

	if err := e.store.ResetTasks(ctx, invalidationSet); err != nil {
		return fmt.Errorf("reset invalidated tasks: %w", err)
	}

	if e.runs.IsRunning(actionID) {
		e.runs.Wake(actionID)
	}
	return nil
}

// waitForRelease polls until taskID is no longer running or the
// cancellation grace window elapses, at which point the caller proceeds
// anyway (invalidate force-resets it via ResetTasks, Delete removes it) —
// matching §4.5's "wait ... or force-release the claim".
func (e *Engine) waitForRelease(ctx context.Context, taskID uuid.UUID) error {
	deadline := time.Now().Add(cancellationGrace)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		task, err := e.store.GetTask(ctx, taskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("check task release: %w", err)
		}
		if task.Status != domain.TaskStatusRunning {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
