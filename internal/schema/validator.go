// Package schema validates rendered workflow manifests before they leave the
// process.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/apexflow/internal/model"
)

//go:embed schemas/manifest.schema.yaml
var manifestSchema []byte

// Validator handles JSON schema validation of manifests
type Validator struct {
	manifest *jsonschema.Schema
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// NewValidator compiles the embedded manifest schema
func NewValidator() (*Validator, error) {
	s, err := loadSchema("manifest.schema.json", manifestSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest schema: %w", err)
	}
	return &Validator{manifest: s}, nil
}

// Default returns a process-wide validator compiled on first use
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	return defaultValidator, defaultErr
}

// ValidateManifest checks m the way the dispatch service will read it,
// through its JSON encoding.
func (v *Validator) ValidateManifest(m *model.Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := v.manifest.Validate(doc); err != nil {
		return fmt.Errorf("manifest %s is invalid: %w", m.Metadata.Name, err)
	}
	return nil
}

// loadSchema compiles a schema document (JSON or YAML)
func loadSchema(url string, data []byte) (*jsonschema.Schema, error) {
	// Parse YAML to interface{} (supports both YAML and JSON)
	var schemaData interface{}
	if err := yaml.Unmarshal(data, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	schema, err := jsonschema.CompileString(url, string(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}
