package agent

import "sync"

// GenericType is the fallback agent_type the planner resolves unknown
// types to (§4.3 validation rule 1) and the type used by the planner's
// single-task fallback DAG (§4.3 retry policy).
const GenericType = "generic"

// Registry is a thread-safe lookup from agent_type to Agent.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// DefaultRegistry returns a registry pre-populated with the reference
// agents: generic, delay, http_fetch, transform and wasm_script (§4.6 /
// §9). code_execution is registered separately by DefaultRegistryWithDocker
// since it requires a reachable Docker daemon.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewGeneric())
	r.Register(NewDelay())
	r.Register(NewHTTPFetch())
	r.Register(NewTransform())
	r.Register(NewWASMScript())
	return r
}

// DefaultRegistryWithDocker returns DefaultRegistry augmented with
// code_execution. It fails if the Docker daemon is unreachable, since
// unlike the other reference agents this one cannot be constructed
// lazily at call time — construction pings the daemon.
func DefaultRegistryWithDocker() (*Registry, error) {
	r := DefaultRegistry()
	exec, err := NewCodeExecution()
	if err != nil {
		return nil, err
	}
	r.Register(exec)
	return r, nil
}

// Register adds or replaces the agent under its own Type().
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Type()] = a
}

// Unregister removes an agent type.
func (r *Registry) Unregister(agentType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentType)
}

// Get returns the agent for agentType, falling back to GenericType if it
// is not registered — unknown agent types never fail planning or
// execution outright (§4.3 rule 1).
func (r *Registry) Get(agentType string) Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.agents[agentType]; ok {
		return a
	}
	return r.agents[GenericType]
}

// Has reports whether agentType is registered (used by planner validation
// to decide whether a type needs to be coerced to generic).
func (r *Registry) Has(agentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[agentType]
	return ok
}

// Types returns the currently registered agent type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.agents))
	for t := range r.agents {
		out = append(out, t)
	}
	return out
}
