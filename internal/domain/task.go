package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task is a node in an action's DAG: a unit of agent execution.
//
// Dependencies is an ordered set of task identifiers, all belonging to the
// same action; the induced graph must be acyclic with a topological order.
// A task may be running only if every dependency is completed.
type Task struct {
	ID       uuid.UUID `json:"id"`
	ActionID uuid.UUID `json:"action_id"`

	// Prompt is the task's own instruction text, handed to the agent
	// along with the completed outputs of its dependencies.
	Prompt string `json:"prompt"`

	// AgentType names an entry in the agent registry; unknown types are
	// resolved to the generic fallback agent by the planner (§4.3.1).
	AgentType string `json:"agent_type"`

	// Model optionally overrides the default model an agent should use;
	// meaning is agent-specific and opaque to the core.
	Model string `json:"model,omitempty"`

	Status TaskStatus `json:"status"`

	// Dependencies holds the ordered ids of tasks that must complete
	// before this task is schedulable. All ids belong to the same action.
	Dependencies []uuid.UUID `json:"dependencies,omitempty"`

	// OutputSummary is a short textual summary of the task's last
	// completed output, or its last error message on failure. Discarded
	// atomically with any transition back to pending.
	OutputSummary string `json:"output_summary,omitempty"`

	// Attempt is the 1-based number of the current or most recent
	// invocation; incremented on every MarkRunning.
	Attempt int `json:"attempt"`

	// ClaimToken is a per-attempt identifier minted on MarkRunning and
	// checked at commit time so a stale completion (after invalidation)
	// can be detected and dropped (§4.5).
	ClaimToken uuid.UUID `json:"claim_token,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Duration returns the task's last run duration, or 0 if not finished.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished reports whether the task is in a terminal status.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning claims the task: increments Attempt, mints a fresh
// ClaimToken and stamps StartedAt. Callers must have already performed the
// pending→running CAS against the store; this only updates the in-memory
// view consistently with that transition.
func (t *Task) MarkRunning() uuid.UUID {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
	t.FinishedAt = nil
	t.Attempt++
	t.ClaimToken = uuid.New()
	t.UpdatedAt = now
	return t.ClaimToken
}

// MarkCompleted transitions the task to completed with the given summary.
func (t *Task) MarkCompleted(summary string) {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.FinishedAt = &now
	t.OutputSummary = summary
	t.UpdatedAt = now
}

// MarkFailed transitions the task to failed with the given error message.
func (t *Task) MarkFailed(errMsg string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.OutputSummary = errMsg
	t.UpdatedAt = now
}

// ResetToPending is the invalidation operation (§4.5): the task returns to
// pending, its current output is detached, and its claim token is cleared
// so any in-flight completion for the old attempt will be rejected.
func (t *Task) ResetToPending() {
	t.Status = TaskStatusPending
	t.StartedAt = nil
	t.FinishedAt = nil
	t.OutputSummary = ""
	t.ClaimToken = uuid.Nil
	t.UpdatedAt = time.Now()
}

// CanRetry reports whether another attempt is allowed under maxAttempts
// (task_retry_max_attempts, inclusive of the first try).
func (t *Task) CanRetry(maxAttempts int) bool {
	return t.Attempt < maxAttempts
}

// DependsOn reports whether id appears in Dependencies.
func (t *Task) DependsOn(id uuid.UUID) bool {
	for _, d := range t.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}

// TaskSpec is the planner's/caller's description of a task to be created,
// used by CreateTasks and Add (§4.2, §4.5).
type TaskSpec struct {
	Prompt       string
	AgentType    string
	Model        string
	Dependencies []uuid.UUID
}

// TaskPatch is a partial update applied by Edit (§4.5); nil fields are
// left unchanged.
type TaskPatch struct {
	Prompt       *string
	AgentType    *string
	Model        *string
	Dependencies *[]uuid.UUID
}
