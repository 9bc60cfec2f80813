// Package schema validates event payloads against JSON Schemas before they
// are published.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const transcriptionCompletedSchema = `{
	"type": "object",
	"required": ["eventType", "requestId", "provider", "text", "timestamp"],
	"properties": {
		"eventType":    {"const": "recitation.transcription.completed"},
		"requestId":    {"type": "string", "minLength": 1},
		"provider":     {"type": "string", "enum": ["openai", "assemblyai"]},
		"languageCode": {"type": "string"},
		"text":         {"type": "string"},
		"confidence":   {"type": "number", "minimum": 0, "maximum": 1},
		"durationMs":   {"type": "integer", "minimum": 0},
		"timestamp":    {"type": "integer", "minimum": 0}
	},
	"additionalProperties": false
}`

const recitationScoredSchema = `{
	"type": "object",
	"required": ["eventType", "requestId", "score", "parsed", "timestamp"],
	"properties": {
		"eventType": {"const": "recitation.scored"},
		"requestId": {"type": "string", "minLength": 1},
		"score":     {"type": "number", "minimum": 0, "maximum": 1},
		"parsed":    {"type": "boolean"},
		"timestamp": {"type": "integer", "minimum": 0}
	},
	"additionalProperties": false
}`

// Validator validates event payloads by event type.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles the event schemas. Panics on a malformed schema, since that
// is a programming error, not a runtime condition.
func New() *Validator {
	v := &Validator{schemas: make(map[string]*jsonschema.Schema)}
	v.schemas["recitation.transcription.completed"] = mustCompile("transcription_completed.json", transcriptionCompletedSchema)
	v.schemas["recitation.scored"] = mustCompile("recitation_scored.json", recitationScoredSchema)
	return v
}

// Validate checks event against the schema registered for eventType.
// Unknown event types are rejected.
func (v *Validator) Validate(eventType string, event any) error {
	sch, ok := v.schemas[eventType]
	if !ok {
		return fmt.Errorf("no schema registered for event type %q", eventType)
	}

	// jsonschema validates decoded JSON values, so round-trip the struct.
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if err := sch.Validate(decoded); err != nil {
		return fmt.Errorf("event does not match schema %s: %w", eventType, err)
	}
	return nil
}

func mustCompile(name, schemaJSON string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("schema: add resource %s: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("schema: compile %s: %v", name, err))
	}
	return sch
}
