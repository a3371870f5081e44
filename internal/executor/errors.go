package executor

import "errors"

// ErrAlreadyRunning is returned by Run when a run is already in progress
// for the action; per §4.4 this is not an error condition for the
// caller, merely a no-op signal.
var ErrAlreadyRunning = errors.New("executor: run already in progress for this action")

// ErrNothingToRetry is returned by Retry when the action has no failed
// tasks to reset — retrying a fully-completed or still-pending action
// is a no-op the caller should not mistake for a started run.
var ErrNothingToRetry = errors.New("executor: action has no failed tasks to retry")
