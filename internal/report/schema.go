// Package report turns one branch's extracted snapshot into the binary
// analysis-report bundle expected by the destination's ingestion endpoint.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	_ "embed"
)

//go:embed report_schema.json
var embeddedSchema []byte

// schemaDiskPath is where the raw schema definition is read from when the
// embedded copy is unusable. Overridable through CLOUDVOYAGER_SCHEMA_FILE.
const schemaDiskPath = "report_schema.json"

// FieldDef describes one field of a wire message.
type FieldDef struct {
	Name     string `json:"name"`
	Number   int32  `json:"number"`
	Type     string `json:"type"`
	Enum     string `json:"enum,omitempty"`
	Repeated bool   `json:"repeated,omitempty"`
}

// MessageDef describes one wire message, fields in declaration order.
type MessageDef struct {
	Name   string     `json:"name"`
	Fields []FieldDef `json:"fields"`
}

// EnumDef describes one wire enum.
type EnumDef struct {
	Name   string           `json:"name"`
	Values map[string]int32 `json:"values"`
}

// Schema is the loaded wire-format definition. Messages and enums are
// resolvable by name regardless of which loading strategy produced it.
type Schema struct {
	Version  int          `json:"version"`
	Messages []MessageDef `json:"messages"`
	Enums    []EnumDef    `json:"enums"`

	byMessage map[string]*MessageDef
	byEnum    map[string]*EnumDef
}

// Message resolves a message definition by name.
func (s *Schema) Message(name string) (*MessageDef, error) {
	m, ok := s.byMessage[name]
	if !ok {
		return nil, fmt.Errorf("schema has no message %q", name)
	}
	return m, nil
}

// Enum resolves an enum definition by name.
func (s *Schema) Enum(name string) (*EnumDef, error) {
	e, ok := s.byEnum[name]
	if !ok {
		return nil, fmt.Errorf("schema has no enum %q", name)
	}
	return e, nil
}

// EnumNumber resolves an enum value name to its wire number.
func (e *EnumDef) EnumNumber(value string) (int32, bool) {
	n, ok := e.Values[value]
	return n, ok
}

var (
	schemaOnce sync.Once
	schema     *Schema
	schemaErr  error
)

// LoadSchema loads the wire-format schema exactly once per process. The
// embedded definition is the primary strategy; when it is missing or does
// not parse, the definition is read from disk instead. Both strategies
// yield an identical schema object.
func LoadSchema() (*Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = loadSchemaUncached()
	})
	return schema, schemaErr
}

func loadSchemaUncached() (*Schema, error) {
	s, err := parseSchema(embeddedSchema)
	if err == nil {
		return s, nil
	}

	path := os.Getenv("CLOUDVOYAGER_SCHEMA_FILE")
	if path == "" {
		path = schemaDiskPath
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("embedded schema unusable (%v) and disk fallback failed: %w", err, readErr)
	}
	s, parseErr := parseSchema(data)
	if parseErr != nil {
		return nil, fmt.Errorf("embedded schema unusable (%v) and disk schema invalid: %w", err, parseErr)
	}
	return s, nil
}

// parseSchema decodes and validates a raw schema definition.
func parseSchema(data []byte) (*Schema, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty schema definition")
	}

	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema definition: %w", err)
	}
	if len(s.Messages) == 0 {
		return nil, fmt.Errorf("schema defines no messages")
	}

	s.byMessage = make(map[string]*MessageDef, len(s.Messages))
	for i := range s.Messages {
		m := &s.Messages[i]
		if m.Name == "" {
			return nil, fmt.Errorf("schema message %d has no name", i)
		}
		if _, dup := s.byMessage[m.Name]; dup {
			return nil, fmt.Errorf("schema defines message %q twice", m.Name)
		}
		for _, f := range m.Fields {
			if f.Number <= 0 {
				return nil, fmt.Errorf("message %q field %q has invalid number %d", m.Name, f.Name, f.Number)
			}
		}
		s.byMessage[m.Name] = m
	}

	s.byEnum = make(map[string]*EnumDef, len(s.Enums))
	for i := range s.Enums {
		e := &s.Enums[i]
		if e.Name == "" {
			return nil, fmt.Errorf("schema enum %d has no name", i)
		}
		if _, dup := s.byEnum[e.Name]; dup {
			return nil, fmt.Errorf("schema defines enum %q twice", e.Name)
		}
		s.byEnum[e.Name] = e
	}

	// Every enum-typed field must reference a declared enum.
	for _, m := range s.Messages {
		for _, f := range m.Fields {
			if f.Type == "enum" {
				if _, ok := s.byEnum[f.Enum]; !ok {
					return nil, fmt.Errorf("message %q field %q references unknown enum %q", m.Name, f.Name, f.Enum)
				}
			}
		}
	}

	return &s, nil
}
