package domain

import (
	"time"

	"github.com/google/uuid"
)

// LogEntry is one append-only log line emitted by an agent through the
// task's log sink (§4.6) and forwarded to log.append bus events.
type LogEntry struct {
	ID      uuid.UUID `json:"id"`
	TaskID  uuid.UUID `json:"task_id"`
	Level   LogLevel  `json:"level"`
	Message string    `json:"message"`

	// Payload is optional structured context attached to the line
	// (error details, intermediate values); never interpreted by the core.
	Payload map[string]any `json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
