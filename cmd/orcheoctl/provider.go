package main

import (
	"os"

	"github.com/orcheo/engine/internal/planner"
)

// defaultPlannerProvider picks whichever of the two concrete providers
// has credentials configured, preferring Anthropic.
func defaultPlannerProvider() (planner.Provider, error) {
	if p, err := planner.NewAnthropicProvider("", os.Getenv("ORCHEO_PLANNER_MODEL")); err == nil {
		return p, nil
	}
	return planner.NewOpenAIProvider("", os.Getenv("ORCHEO_PLANNER_MODEL"), os.Getenv("ORCHEO_OPENAI_BASE_URL"))
}
