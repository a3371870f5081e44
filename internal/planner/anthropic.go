package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = anthropic.ModelClaudeSonnet4_5
	planToolName          = "emit_plan"
	planMaxTokens         = 4096
)

// planToolInputSchema forces the model to emit JSON matching our plan
// schema through tool use rather than free-form text, since the
// Anthropic API has no separate "JSON mode" the way some providers do.
var planToolInputSchema = map[string]any{
	"type":     "object",
	"required": []string{"tasks"},
	"properties": map[string]any{
		"tasks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"prompt", "agent_type"},
				"properties": map[string]any{
					"prompt":       map[string]any{"type": "string"},
					"agent_type":   map[string]any{"type": "string"},
					"model":        map[string]any{"type": "string"},
					"dependencies": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
				},
			},
		},
	},
}

// AnthropicProvider is the Provider backed by the native Anthropic
// Messages API, forcing structured output via a single synthetic tool.
type AnthropicProvider struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicProvider builds a provider from ANTHROPIC_API_KEY. model
// defaults to a Claude Sonnet release if empty.
func NewAnthropicProvider(apiKey, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrNoProviderAPIKey
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	m := anthropic.Model(model)
	if model == "" {
		m = defaultAnthropicModel
	}
	return &AnthropicProvider{client: &c, model: m}, nil
}

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (PlanResponse, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: planMaxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req)))},
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        planToolName,
				Description: anthropic.String("Emit the validated task list for this plan."),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: planToolInputSchema["properties"]},
			},
		}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: planToolName},
		},
	})
	if err != nil {
		return PlanResponse{}, fmt.Errorf("anthropic completion: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.Name != planToolName {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(block.Input, &doc); err != nil {
			return PlanResponse{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		if err := validateSchema(doc); err != nil {
			return PlanResponse{}, err
		}
		var plan PlanResponse
		if err := json.Unmarshal(block.Input, &plan); err != nil {
			return PlanResponse{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		return plan, nil
	}
	return PlanResponse{}, fmt.Errorf("%w: no %s tool call in response", ErrSchemaMismatch, planToolName)
}

// buildPrompt renders the root prompt, optional re-plan context and any
// corrective note into one user message.
func buildPrompt(req CompletionRequest) string {
	var b strings.Builder
	b.WriteString("Decompose the following instruction into an ordered, acyclic task graph. ")
	b.WriteString("Call the emit_plan tool with a \"tasks\" array; each task has a prompt, ")
	b.WriteString("an agent_type, and an optional dependencies array of indices strictly less than its own position.\n\n")
	b.WriteString("Instruction: ")
	b.WriteString(req.RootPrompt)

	if len(req.ExistingTasks) > 0 {
		b.WriteString("\n\nExisting tasks (for re-plan context):\n")
		for _, t := range req.ExistingTasks {
			fmt.Fprintf(&b, "- [%d] %s (%s)\n", t.Index, t.Prompt, t.AgentType)
		}
	}
	if req.CorrectiveNote != "" {
		b.WriteString("\n\n")
		b.WriteString(req.CorrectiveNote)
	}
	return b.String()
}
