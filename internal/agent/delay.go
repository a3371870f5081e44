package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Delay is a reference agent that sleeps for a configured duration,
// observing cancellation promptly — useful for exercising the executor's
// cooperative cancellation path without a real external dependency.
type Delay struct{}

// NewDelay returns the delay reference agent.
func NewDelay() *Delay { return &Delay{} }

func (d *Delay) Type() string { return "delay" }

// parseMillis reads a leading integer out of prompt as a millisecond
// count, falling back to a short default when the prompt isn't numeric —
// the prompt doubles as this agent's only configuration surface.
func parseMillis(prompt string, fallback time.Duration) time.Duration {
	field := strings.Fields(prompt)
	if len(field) == 0 {
		return fallback
	}
	ms, err := strconv.Atoi(field[0])
	if err != nil || ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func (d *Delay) Run(ctx context.Context, in Input, log LogSink) (Result, error) {
	duration := parseMillis(in.Prompt, 100*time.Millisecond)

	if log != nil {
		log(LogLine{Level: "info", Message: fmt.Sprintf("sleeping for %s", duration)})
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Result{}, Transient(ctx.Err())
	case <-timer.C:
		return Result{Summary: fmt.Sprintf("slept %s", duration)}, nil
	}
}
