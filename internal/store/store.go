// Package store hides the persistent database behind the Graph Store
// contract of §4.2: CRUD for actions/tasks/outputs/artifacts/logs plus the
// dependents/ancestors query helpers used by invalidation and readiness
// checks. The executor and mutation engine never touch a driver directly.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/orcheo/engine/internal/domain"
)

// ActionFilter narrows ListActions; zero value matches everything.
type ActionFilter struct {
	Status *domain.ActionStatus
	Limit  int
}

// Store is the full Graph Store contract. A Postgres-backed implementation
// and an in-memory implementation (for tests) both satisfy it.
type Store interface {
	CreateAction(ctx context.Context, title, rootPrompt string) (*domain.Action, error)
	GetAction(ctx context.Context, id uuid.UUID) (*domain.Action, error)
	ListActions(ctx context.Context, filter ActionFilter) ([]*domain.Action, error)
	UpdateActionStatus(ctx context.Context, id uuid.UUID, status domain.ActionStatus) error
	DeleteAction(ctx context.Context, id uuid.UUID) error

	// CreateTasks inserts specs atomically, rejecting the batch if it
	// would introduce a cycle or reference a task outside actionID.
	CreateTasks(ctx context.Context, actionID uuid.UUID, specs []domain.TaskSpec) ([]*domain.Task, error)

	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListTasks(ctx context.Context, actionID uuid.UUID) ([]*domain.Task, error)

	// UpdateTask applies patch, validating the resulting graph remains
	// acyclic and dependency-closed within the action.
	UpdateTask(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)

	// ClaimTask performs the pending→running CAS and mints a new claim
	// token, returning it. ok is false if the task was not pending.
	ClaimTask(ctx context.Context, id uuid.UUID) (token uuid.UUID, ok bool, err error)

	// CompleteTask transitions a running task to completed, persisting
	// output and validating token still matches the task's claim. Returns
	// ErrStaleClaimToken if invalidation won the race.
	CompleteTask(ctx context.Context, id uuid.UUID, token uuid.UUID, output domain.TaskOutput) error

	// FailTask transitions a running task to failed, same token check as
	// CompleteTask.
	FailTask(ctx context.Context, id uuid.UUID, token uuid.UUID, errMsg string) error

	// ResetTasks atomically sets every id to pending, clears summaries
	// and detaches outputs — the invalidation primitive used by Edit and
	// Reset (§4.5) and by the executor's action-level Retry.
	ResetTasks(ctx context.Context, ids []uuid.UUID) error

	DeleteTask(ctx context.Context, id uuid.UUID) error

	// GetTaskOutput returns a completed task's persisted output, used by
	// the executor to gather dependency inputs for downstream tasks.
	GetTaskOutput(ctx context.Context, id uuid.UUID) (*domain.TaskOutput, error)

	// Dependents returns the transitive set of tasks depending on id.
	Dependents(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	// Ancestors returns the transitive set of tasks id depends on.
	Ancestors(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)

	AppendLog(ctx context.Context, entry domain.LogEntry) error
	ListLogs(ctx context.Context, taskID uuid.UUID, limit int) ([]domain.LogEntry, error)
	// TrimLogs deletes all but the most recent keep log rows per task,
	// enforcing log_retention_per_task; used by the housekeeping sweep.
	TrimLogs(ctx context.Context, taskID uuid.UUID, keep int) error

	SaveArtifactMeta(ctx context.Context, a domain.Artifact) error
	GetArtifactMeta(ctx context.Context, id uuid.UUID) (*domain.Artifact, error)

	// DeleteArtifactsByTask removes every artifact record owned by any of
	// taskIDs, keeping artifact metadata from outliving the output row
	// that referenced it — called alongside DeleteTask/DeleteAction and
	// ResetTasks so a discarded or re-run task doesn't leave orphans.
	DeleteArtifactsByTask(ctx context.Context, taskIDs []uuid.UUID) error

	Close(ctx context.Context) error
}

// now is a small seam kept so tests can freeze time if ever needed; kept
// as a direct call today, matching the teacher's repos which stamp with
// time.Now() inline.
func now() time.Time { return time.Now() }
