package agent

import (
	"context"
	"fmt"
)

// Generic is the deterministic fallback agent: it performs no real work
// and summarizes the task's own prompt, used when an unknown agent_type
// is encountered and as the planner's last-resort single-task DAG.
type Generic struct{}

// NewGeneric returns the generic fallback agent.
func NewGeneric() *Generic { return &Generic{} }

func (g *Generic) Type() string { return GenericType }

func (g *Generic) Run(ctx context.Context, in Input, log LogSink) (Result, error) {
	if log != nil {
		log(LogLine{Level: "info", Message: "generic agent acknowledging prompt"})
	}
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}
	return Result{Summary: fmt.Sprintf("acknowledged: %s", in.Prompt)}, nil
}
