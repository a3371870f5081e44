package agent

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
)

// transformContext is the data made available to the Go template rendered
// by Transform: the upstream dependency summaries keyed by task ID string,
// plus a flat slice for convenient {{ range }} use.
type transformContext struct {
	Deps  map[string]string
	Order []string
}

// Transform is a reference agent that renders its prompt as a Go template
// against its dependencies' output summaries, joining the dependency
// outputs it references into a single derived summary.
type Transform struct{}

// NewTransform returns the transform reference agent.
func NewTransform() *Transform { return &Transform{} }

func (t *Transform) Type() string { return "transform" }

func (t *Transform) Run(ctx context.Context, in Input, log LogSink) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, Transient(ctx.Err())
	default:
	}

	tmplCtx := transformContext{Deps: make(map[string]string, len(in.Dependencies))}
	for _, dep := range in.Dependencies {
		id := dep.TaskID.String()
		tmplCtx.Deps[id] = dep.Summary
		tmplCtx.Order = append(tmplCtx.Order, dep.Summary)
	}

	tmpl, err := template.New("transform").Parse(in.Prompt)
	if err != nil {
		return Result{}, Permanent(fmt.Errorf("parse template: %w", err))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, tmplCtx); err != nil {
		return Result{}, Permanent(fmt.Errorf("render template: %w", err))
	}

	rendered := strings.TrimSpace(buf.String())
	if log != nil {
		log(LogLine{Level: "info", Message: "rendered transform output"})
	}

	return Result{Summary: rendered}, nil
}
