package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	checkout "github.com/unified-commerce/checkout/go"
)

// ============================================================================
// Tool input schemas
// ============================================================================

// Input validation happens at the gateway boundary, before anything is sent
// upstream: a malformed call never reaches the Resource API. The same schema
// documents are advertised to clients through the tool catalog.

const lineItemsSchemaFragment = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["item", "quantity"],
		"properties": {
			"item": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": "string", "minLength": 1}
				}
			},
			"quantity": {"type": "integer", "minimum": 1}
		}
	}
}`

var toolInputSchemas = map[string]string{
	ToolCreateCheckout: `{
		"type": "object",
		"required": ["line_items"],
		"properties": {
			"line_items": ` + lineItemsSchemaFragment + `
		}
	}`,
	ToolGetCheckout: `{
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"type": "string", "minLength": 1}
		}
	}`,
	ToolUpdateCheckout: `{
		"type": "object",
		"required": ["id", "line_items"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"line_items": ` + lineItemsSchemaFragment + `
		}
	}`,
	ToolCompleteCheckout: `{
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"type": "string", "minLength": 1}
		}
	}`,
	ToolCancelCheckout: `{
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"type": "string", "minLength": 1}
		}
	}`,
}

var compiledSchemas = compileSchemas()

func compileSchemas() map[string]*gojsonschema.Schema {
	out := make(map[string]*gojsonschema.Schema, len(toolInputSchemas))
	for name, raw := range toolInputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			panic(fmt.Sprintf("invalid input schema for %s: %v", name, err))
		}
		out[name] = schema
	}
	return out
}

// inputSchemaDocument returns the schema for a tool as a generic document,
// suitable for the tool catalog.
func inputSchemaDocument(tool string) map[string]interface{} {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(toolInputSchemas[tool]), &doc); err != nil {
		panic(fmt.Sprintf("invalid input schema for %s: %v", tool, err))
	}
	return doc
}

// validateArguments checks raw tool arguments against the tool's input
// schema. Violations come back as one invalid_input error listing every
// failed constraint.
func validateArguments(tool string, raw json.RawMessage) error {
	schema, ok := compiledSchemas[tool]
	if !ok {
		return checkout.NewError(checkout.ErrCodeInvalidInput, fmt.Sprintf("unknown tool %q", tool), nil)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return checkout.NewError(checkout.ErrCodeInvalidInput, "arguments are not a valid JSON object: "+err.Error(), nil)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]interface{}, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return checkout.NewError(
		checkout.ErrCodeInvalidInput,
		fmt.Sprintf("arguments for %s failed schema validation", tool),
		map[string]interface{}{"violations": violations},
	)
}
