package metadata

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/metadata-schema.json
var baseSchemaJSON []byte

// Validator checks records against a JSON schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles schemaJSON, or the embedded schema when nil.
func NewValidator(schemaJSON []byte) (*Validator, error) {
	if schemaJSON == nil {
		schemaJSON = baseSchemaJSON
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	err := compiler.AddResource("metadata-schema.json", bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := compiler.Compile("metadata-schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

func (v *Validator) Validate(record Record) error {
	err := v.schema.Validate(map[string]any(record))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	return nil
}
