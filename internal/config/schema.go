package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/config.schema.json
var schemaJSON []byte

const schemaURL = "config.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Schema returns the JSON schema configuration files are checked against.
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// ValidateDocument checks a raw configuration document in the named format
// against the embedded schema. Unknown keys, wrong types and out-of-range
// enum values are reported here, before decoding can silently drop them.
func ValidateDocument(data []byte, format string) error {
	schema, err := configSchema()
	if err != nil {
		return err
	}
	instance, err := documentInstance(data, format)
	if err != nil {
		return err
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// documentInstance decodes data into the generic form the schema validator
// expects. TOML and YAML produce their own number and map types, so the
// value is passed through encoding/json to normalize it.
func documentInstance(data []byte, format string) (any, error) {
	var raw any
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
		return raw, nil
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	case "toml", "":
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
		raw = m
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}

	if raw == nil {
		raw = map[string]any{}
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize %s document: %w", format, err)
	}
	var out any
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, fmt.Errorf("normalize %s document: %w", format, err)
	}
	return out, nil
}
