package paramfile

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.schema.yaml
var schemaFS embed.FS

// Kind is one of the closed set of parameter-file shapes
type Kind string

const (
	KindRelax Kind = "relax"
	KindProps Kind = "props"
)

// Kinds lists every known parameter-file kind in classification order
var Kinds = []Kind{KindRelax, KindProps}

var (
	schemasOnce sync.Once
	schemas     map[Kind]*jsonschema.Schema
	schemasErr  error
)

// Schemas compiles the embedded schemas once and returns them by kind
func Schemas() (map[Kind]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = make(map[Kind]*jsonschema.Schema, len(Kinds))
		for _, kind := range Kinds {
			s, err := compileSchema(kind)
			if err != nil {
				schemasErr = err
				return
			}
			schemas[kind] = s
		}
	})
	return schemas, schemasErr
}

// compileSchema loads schemas/<kind>.schema.yaml and compiles it
func compileSchema(kind Kind) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(fmt.Sprintf("schemas/%s.schema.yaml", kind))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema for %s: %w", kind, err)
	}

	// Parse YAML to interface{} (supports both YAML and JSON)
	var schemaObj interface{}
	if err := yaml.Unmarshal(data, &schemaObj); err != nil {
		return nil, fmt.Errorf("failed to parse schema for %s: %w", kind, err)
	}

	jsonData, err := json.Marshal(schemaObj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for %s: %w", kind, err)
	}

	schemaURI := fmt.Sprintf("paramfile://%s/schema.json", kind)
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == schemaURI {
			return io.NopCloser(strings.NewReader(string(jsonData))), nil
		}
		return nil, fmt.Errorf("external schema reference not supported: %s", url)
	}

	schema, err := compiler.Compile(schemaURI)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema for %s: %w", kind, err)
	}
	return schema, nil
}
