package planner

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// planSchemaDoc is the fixed JSON Schema every provider response must
// satisfy before the §4.3 validation rules (forward references, task
// count, agent type resolution) are applied. It only constrains shape;
// DAG-specific rules are cheaper to check directly in Go than to express
// in schema.
const planSchemaDoc = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["tasks"],
	"properties": {
		"tasks": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["prompt", "agent_type"],
				"properties": {
					"prompt": {"type": "string", "minLength": 1},
					"agent_type": {"type": "string", "minLength": 1},
					"model": {"type": "string"},
					"dependencies": {
						"type": "array",
						"items": {"type": "integer", "minimum": 0}
					}
				}
			}
		}
	}
}`

// planSchema is compiled once at package init; a malformed schema
// literal is a programming error, not a runtime condition, so it panics.
var planSchema = compilePlanSchema()

func compilePlanSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(planSchemaDoc)))
	if err != nil {
		panic(fmt.Sprintf("planner: invalid embedded schema: %v", err))
	}
	const resourceName = "plan.json"
	if err := c.AddResource(resourceName, doc); err != nil {
		panic(fmt.Sprintf("planner: invalid embedded schema: %v", err))
	}
	schema, err := c.Compile(resourceName)
	if err != nil {
		panic(fmt.Sprintf("planner: invalid embedded schema: %v", err))
	}
	return schema
}

// validateSchema checks a decoded (map[string]any) provider response
// against planSchema, wrapping any failure in ErrSchemaMismatch.
func validateSchema(doc any) error {
	if err := planSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}
