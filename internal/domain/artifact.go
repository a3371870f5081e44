package domain

import (
	"time"

	"github.com/google/uuid"
)

// Artifact is a file/image/markdown blob produced by a task and stored
// outside the relational store. The record itself holds only metadata;
// TaskOutput.ArtifactIDs reference artifacts by id.
//
// Lifetime equals the lifetime of the most recent TaskOutput referencing
// it: an artifact orphaned by a task re-run is garbage collected by the
// store, not by the executor.
type Artifact struct {
	ID       uuid.UUID `json:"id"`
	TaskID   uuid.UUID `json:"task_id"`
	MimeType string    `json:"mime_type"`

	// StoragePath is an opaque locator understood by the blob store
	// backing Artifacts (e.g. a bbolt bucket key); never a relational
	// column value.
	StoragePath string `json:"storage_path"`

	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskOutput is the one-per-completed-task record holding a short summary
// and references to zero or more artifacts. A re-run discards the previous
// output atomically with the task's transition to running.
type TaskOutput struct {
	TaskID      uuid.UUID   `json:"task_id"`
	Summary     string      `json:"summary"`
	ArtifactIDs []uuid.UUID `json:"artifact_ids,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
