package domain

import "errors"

// Sentinel errors shared by the store, mutation engine and executor when
// validating or locating domain entities. Graph acyclicity/dependency
// errors live in package graph, which actually builds and walks the DAG;
// these cover validation the store itself is responsible for.
var (
	// ErrEmptyPrompt is returned when a task or action prompt is empty.
	ErrEmptyPrompt = errors.New("prompt must not be empty")

	// ErrInvalidStatusTransition is returned when a caller requests a
	// task status change not allowed by TaskStatus.CanTransitionTo.
	ErrInvalidStatusTransition = errors.New("invalid task status transition")

	// ErrTaskHasDependents is returned by Delete when other tasks still
	// depend on the task being deleted.
	ErrTaskHasDependents = errors.New("task has dependents")
)
