package bus

import (
	"time"

	"github.com/google/uuid"
)

// Kind names one of the event kinds listed in §4.1.
type Kind string

const (
	KindSnapshot      Kind = "snapshot"
	KindActionStarted Kind = "action.started"
	KindActionDone    Kind = "action.completed"
	KindActionFailed  Kind = "action.failed"
	KindActionRetry   Kind = "action.retrying"
	KindTaskStarted   Kind = "task.started"
	KindTaskDone      Kind = "task.completed"
	KindTaskFailed    Kind = "task.failed"
	KindTaskRetrying  Kind = "task.retrying"
	KindTaskRecovered Kind = "task.recovered"
	KindLogAppend     Kind = "log.append"
	KindPing          Kind = "ping"

	// KindLag is synthesized by the bus itself when a subscriber's queue
	// overflows (§4.1 overflow policy: drop-oldest-with-lag-marker).
	KindLag Kind = "lag"
)

// Event is one message delivered to a subscription. Payload shapes mirror
// the SSE framing table in §6; Data is kept as a map so the bus stays
// agnostic to any particular wire encoding.
type Event struct {
	Kind      Kind           `json:"kind"`
	ActionID  uuid.UUID      `json:"action_id"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func newEvent(kind Kind, actionID uuid.UUID, data map[string]any) Event {
	return Event{Kind: kind, ActionID: actionID, Data: data, Timestamp: time.Now()}
}
