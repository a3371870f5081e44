package planner

import "errors"

// Sentinel errors surfaced by provider validation (§4.3); the Planner
// retries on any of these before falling back to a single generic task.
var (
	ErrEmptyPlan         = errors.New("planner: provider returned an empty task list")
	ErrEmptyTaskPrompt   = errors.New("planner: a task prompt is empty")
	ErrForwardReference  = errors.New("planner: a task depends on itself or a later task")
	ErrTooManyTasks      = errors.New("planner: task count exceeds max_tasks")
	ErrSchemaMismatch    = errors.New("planner: provider output did not match the task-list schema")
	ErrNoProviderAPIKey  = errors.New("planner: no API key configured for provider")
)
