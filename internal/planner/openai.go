package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = openai.ChatModelGPT4o

// OpenAIProvider is the Provider backed by the OpenAI chat completions
// API (or any OpenAI-compatible endpoint reachable via baseURL),
// forcing structured output through the same emit_plan function
// contract as AnthropicProvider so both sides of the narrow Provider
// interface agree on shape.
type OpenAIProvider struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIProvider builds a provider from OPENAI_API_KEY. If baseURL is
// non-empty the client targets it instead of the default OpenAI
// endpoint, covering OpenAI-compatible self-hosted gateways.
func NewOpenAIProvider(apiKey, model, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrNoProviderAPIKey
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	m := openai.ChatModel(model)
	if model == "" {
		m = defaultOpenAIModel
	}
	return &OpenAIProvider{client: openai.NewClient(opts...), model: m}, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (PlanResponse, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildPrompt(req)),
		},
		Tools: []openai.ChatCompletionToolParam{{
			Function: shared.FunctionDefinitionParam{
				Name:        planToolName,
				Description: openai.String("Emit the validated task list for this plan."),
				Parameters: shared.FunctionParameters{
					"type":       "object",
					"required":   []string{"tasks"},
					"properties": planToolInputSchema["properties"],
				},
			},
		}},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfFunctionToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: planToolName},
			},
		},
	})
	if err != nil {
		return PlanResponse{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return PlanResponse{}, fmt.Errorf("%w: no choices in response", ErrSchemaMismatch)
	}

	calls := resp.Choices[0].Message.ToolCalls
	for _, call := range calls {
		if call.Function.Name != planToolName {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &doc); err != nil {
			return PlanResponse{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		if err := validateSchema(doc); err != nil {
			return PlanResponse{}, err
		}
		var plan PlanResponse
		if err := json.Unmarshal([]byte(call.Function.Arguments), &plan); err != nil {
			return PlanResponse{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		return plan, nil
	}
	return PlanResponse{}, fmt.Errorf("%w: no %s tool call in response", ErrSchemaMismatch, planToolName)
}
