package planner

import "context"

// TaskProposal is one entry of a provider's structured-output response:
// task prompt/agent type plus dependency indices into the same response
// list, as specified by §4.3's output contract.
type TaskProposal struct {
	Prompt       string `json:"prompt"`
	AgentType    string `json:"agent_type"`
	Model        string `json:"model,omitempty"`
	Dependencies []int  `json:"dependencies,omitempty"`
}

// PlanResponse is the decoded shape a Provider must produce.
type PlanResponse struct {
	Tasks []TaskProposal `json:"tasks"`
}

// CompletionRequest carries everything a Provider needs to produce one
// plan attempt, including the corrective follow-up used on retry.
type CompletionRequest struct {
	// RootPrompt is the user's original instruction (§4.3, non-empty).
	RootPrompt string

	// ExistingTasks, when re-planning an action in flight, gives the
	// provider context on what already exists so it can propose an
	// incremental continuation rather than starting over.
	ExistingTasks []ExistingTask

	// CorrectiveNote is appended to the prompt on retry attempts,
	// describing what was wrong with the previous response.
	CorrectiveNote string
}

// ExistingTask is the minimal context about an already-planned task
// handed back to the provider for re-plan requests.
type ExistingTask struct {
	Index     int
	Prompt    string
	AgentType string
}

// Provider is the single narrow interface every concrete LLM client
// implements (§4.3: "a single chat-completion interface"). Complete
// returns the raw, schema-validated-but-not-yet-DAG-validated plan.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (PlanResponse, error)
}
