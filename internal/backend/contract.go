package backend

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var contractDocument []byte

// responseSchemas maps an operation to its response schema in openapi.yaml.
var responseSchemas = map[string]string{
	OpProcess: "ProcessResponse",
	OpPreview: "PreviewResponse",
	OpBatch:   "BatchResponse",
}

// Contract validates response bodies against the embedded OpenAPI document.
type Contract struct {
	schemas map[string]*openapi3.Schema
}

// LoadContract parses and validates the embedded OpenAPI document.
func LoadContract(ctx context.Context) (*Contract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(contractDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to load API contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid API contract: %w", err)
	}

	c := &Contract{schemas: make(map[string]*openapi3.Schema, len(responseSchemas))}
	for op, name := range responseSchemas {
		ref, ok := doc.Components.Schemas[name]
		if !ok || ref.Value == nil {
			return nil, fmt.Errorf("API contract has no schema %s", name)
		}
		c.schemas[op] = ref.Value
	}
	return c, nil
}

// Check validates a raw JSON body returned by op. Operations without a schema
// are accepted.
func (c *Contract) Check(op string, raw []byte) error {
	schema, ok := c.schemas[op]
	if !ok {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if err := schema.VisitJSON(value); err != nil {
		return err
	}
	return nil
}
