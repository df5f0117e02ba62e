// Package schema validates request payloads of the API and MCP surfaces
// against JSON Schema documents.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/urmzd/linkhub/pkg/device"
)

// JobRequest is the schema of a job scheduling request.
var JobRequest = json.RawMessage(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"kind": {"enum": ["sync", "import", "connect", "remove-device", "remove-gateway", "purge-hub-links"]},
		"force": {"type": "boolean"},
		"device": {"$ref": "#/$defs/address"}
	},
	"required": ["kind"],
	"additionalProperties": false,
	"allOf": [
		{
			"if": {"properties": {"kind": {"enum": ["remove-device", "remove-gateway"]}}},
			"then": {"required": ["device"]}
		}
	],
	"$defs": {
		"address": {"type": "string", "pattern": "^[0-9A-Fa-f]{2}[.:]?[0-9A-Fa-f]{2}[.:]?[0-9A-Fa-f]{2}$"}
	}
}`)

// LinkRequest is the schema of a manual linking request.
var LinkRequest = json.RawMessage(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"action": {"enum": ["auto", "controller", "responder", "delete"]},
		"group": {"type": "integer", "minimum": 0, "maximum": 255},
		"device": {"type": "string", "pattern": "^[0-9A-Fa-f]{2}[.:]?[0-9A-Fa-f]{2}[.:]?[0-9A-Fa-f]{2}$"}
	},
	"required": ["action", "device"],
	"additionalProperties": false
}`)

// Validator validates JSON payloads against JSON Schema documents.
// It caches compiled schemas keyed by their raw bytes.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewValidator creates a new Validator with an empty cache.
func NewValidator() *Validator {
	return &Validator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Validate checks payload against schemaDoc. Validation failures wrap
// device.ErrValidation; an empty schema accepts everything.
func (v *Validator) Validate(schemaDoc json.RawMessage, payload map[string]any) error {
	if len(schemaDoc) == 0 || string(schemaDoc) == "{}" || string(schemaDoc) == "null" {
		return nil
	}

	compiled, err := v.compile(schemaDoc)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	if err := compiled.Validate(normalize(payload)); err != nil {
		return fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	return nil
}

// ValidateJSON decodes raw and validates it, returning the decoded payload.
func (v *Validator) ValidateJSON(schemaDoc json.RawMessage, raw []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	return payload, v.Validate(schemaDoc, payload)
}

// normalize converts Go numeric types to float64 the way encoding/json
// decodes them, so payloads built in code validate like decoded ones.
func normalize(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, val := range payload {
		switch n := val.(type) {
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case uint8:
			out[k] = float64(n)
		default:
			out[k] = val
		}
	}
	return out
}

func (v *Validator) compile(schemaDoc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaDoc)

	v.mu.RLock()
	if s, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return s, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock
	if s, ok := v.cache[key]; ok {
		return s, nil
	}

	var schemaMap any
	if err := json.Unmarshal(schemaDoc, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaMap); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}
