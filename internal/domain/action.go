package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action is a user-initiated workflow rooted in a natural-language prompt,
// materialised by the planner as a task DAG.
//
// An action owns its tasks by composition: deleting an action deletes its
// tasks and their outputs.
type Action struct {
	// ID is the unique identifier of the action.
	ID uuid.UUID `json:"id"`

	// Title is a short human-readable label, either user-supplied or
	// derived from the root prompt by the planner.
	Title string `json:"title"`

	// RootPrompt is the original natural-language goal the action was
	// created from. Re-planning a running action re-derives tasks from it.
	RootPrompt string `json:"root_prompt"`

	// Status is the current lifecycle state, derived from task statuses
	// per the invariant in §3: completed iff every task is completed,
	// failed iff at least one task is failed and none is running.
	Status ActionStatus `json:"status"`

	// Attempt counts operator-initiated action-level retries (§4.4);
	// starts at 0, incremented by MarkRetrying.
	Attempt int `json:"attempt"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsFinished reports whether the action is in a terminal status.
func (a *Action) IsFinished() bool {
	return a.Status.IsTerminal()
}

// MarkRunning transitions the action to running, stamping StartedAt the
// first time it is called.
func (a *Action) MarkRunning() {
	if a.StartedAt == nil {
		now := time.Now()
		a.StartedAt = &now
	}
	a.Status = ActionStatusRunning
	a.UpdatedAt = time.Now()
}

// MarkCompleted transitions the action to completed.
func (a *Action) MarkCompleted() {
	now := time.Now()
	a.Status = ActionStatusCompleted
	a.FinishedAt = &now
	a.UpdatedAt = now
}

// MarkFailed transitions the action to failed.
func (a *Action) MarkFailed() {
	now := time.Now()
	a.Status = ActionStatusFailed
	a.FinishedAt = &now
	a.UpdatedAt = now
}

// MarkRetrying reopens a terminal action for an operator-initiated retry
// cycle (§4.4 action-level retry), incrementing Attempt.
func (a *Action) MarkRetrying() {
	a.Attempt++
	a.Status = ActionStatusRunning
	a.FinishedAt = nil
	a.UpdatedAt = time.Now()
}
