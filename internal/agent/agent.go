// Package agent defines the Agent contract (§4.6) and the static plugin
// registry that replaces the dynamic code loading flagged for
// re-architecture in §9: agent_type is a lookup key into this registry,
// never executable source fetched at run time.
package agent

import (
	"context"

	"github.com/google/uuid"
)

// Dependency is one completed upstream task's output, handed to an agent
// as part of Input.
type Dependency struct {
	TaskID      uuid.UUID
	Summary     string
	ArtifactIDs []uuid.UUID
}

// Input is everything an agent needs to run one task invocation.
type Input struct {
	TaskID       uuid.UUID
	Prompt       string
	Model        string
	Dependencies []Dependency
}

// LogLine is one message an agent emits through its log sink; forwarded
// by the executor to log.append bus events and persisted via the store.
type LogLine struct {
	Level   string
	Message string
	Payload map[string]any
}

// LogSink receives log lines during an invocation.
type LogSink func(LogLine)

// ArtifactBlob is a produced artifact's bytes plus its declared mime type;
// the executor persists it through the store's blob backend and records
// the resulting id in the TaskOutput.
type ArtifactBlob struct {
	MimeType string
	Data     []byte
}

// Result is a successful invocation's output.
type Result struct {
	Summary   string
	Artifacts []ArtifactBlob
}

// Agent is the single operation every task executor implementation must
// expose. Cancellation is cooperative: Run must observe ctx and return
// promptly once it is done. Failures must be returned as a *TransientError
// or *PermanentError (see errors.go) so the executor knows whether to retry.
type Agent interface {
	// Type is the agent_type string this agent is registered under.
	Type() string

	Run(ctx context.Context, in Input, log LogSink) (Result, error)
}
