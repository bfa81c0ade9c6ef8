package report

import (
	"archive/zip"
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Bundle entry names, one per message family, in fixed write order.
const (
	entryMetadata   = "metadata.pb"
	entryComponents = "components.pb"
	entryIssues     = "issues.pb"
	entryChangesets = "changesets.pb"
)

// Encoder serializes a report model into the destination's binary bundle.
// Encoding is pure: identical models produce byte-identical bundles.
type Encoder struct{}

// NewEncoder creates a report encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode produces the zip bundle holding one length-delimited message
// stream per message family. The wire schema is loaded once per process.
func (e *Encoder) Encode(model *Model) ([]byte, error) {
	if model == nil {
		return nil, fmt.Errorf("nil report model")
	}

	schema, err := LoadSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to load report schema: %w", err)
	}

	metadata, err := e.encodeMetadata(schema, model)
	if err != nil {
		return nil, err
	}
	components, err := e.encodeComponents(schema, model)
	if err != nil {
		return nil, err
	}
	issues, err := e.encodeFindings(schema, model)
	if err != nil {
		return nil, err
	}
	changesets, err := e.encodeChangesets(schema, model)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := []struct {
		name string
		data []byte
	}{
		{entryMetadata, metadata},
		{entryComponents, components},
		{entryIssues, issues},
		{entryChangesets, changesets},
	}
	for _, entry := range entries {
		// Entry timestamps come from the model, never from the wall clock.
		header := &zip.FileHeader{
			Name:     entry.name,
			Method:   zip.Deflate,
			Modified: model.AnalysisDate.UTC(),
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create bundle entry %s: %w", entry.name, err)
		}
		if _, err := w.Write(entry.data); err != nil {
			return nil, fmt.Errorf("failed to write bundle entry %s: %w", entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize report bundle: %w", err)
	}

	return buf.Bytes(), nil
}

func (e *Encoder) encodeMetadata(schema *Schema, model *Model) ([]byte, error) {
	msg, err := encodeMessage(schema, "Metadata", fieldValues{
		"project_key":        model.ProjectKey,
		"branch_name":        model.BranchName,
		"analysis_date":      model.AnalysisDate.UTC().UnixMilli(),
		"revision":           model.Revision,
		"root_component_ref": model.RootRef,
	})
	if err != nil {
		return nil, err
	}
	return appendDelimited(nil, msg), nil
}

func (e *Encoder) encodeComponents(schema *Schema, model *Model) ([]byte, error) {
	var out []byte
	for _, node := range model.Components {
		msg, err := encodeMessage(schema, "Component", fieldValues{
			"ref":        node.Ref,
			"type":       node.Type,
			"path":       node.Path,
			"language":   node.Language,
			"child_refs": node.ChildRefs,
			"lines":      node.Lines,
		})
		if err != nil {
			return nil, err
		}
		out = appendDelimited(out, msg)
	}
	return out, nil
}

func (e *Encoder) encodeFindings(schema *Schema, model *Model) ([]byte, error) {
	var out []byte
	for _, af := range model.Findings {
		msg, err := encodeMessage(schema, "Issue", fieldValues{
			"component_ref": af.Ref,
			"rule_key":      af.Finding.Rule,
			"msg":           af.Finding.Message,
			"severity":      af.Finding.Severity,
			"line":          int32(af.Finding.StartLine()),
			"status":        af.Finding.Status,
			"resolution":    af.Finding.Resolution,
			"assignee":      af.Finding.Assignee,
			"tags":          af.Finding.Tags,
			"kind":          af.Kind,
		})
		if err != nil {
			return nil, err
		}
		out = appendDelimited(out, msg)
	}
	return out, nil
}

func (e *Encoder) encodeChangesets(schema *Schema, model *Model) ([]byte, error) {
	var out []byte
	for _, node := range model.Components {
		if node.Type != "FILE" {
			continue
		}
		msg, err := encodeMessage(schema, "Changeset", fieldValues{
			"component_ref": node.Ref,
			"revision":      model.Revision,
			"date":          model.AnalysisDate.UTC().UnixMilli(),
		})
		if err != nil {
			return nil, err
		}
		out = appendDelimited(out, msg)
	}
	return out, nil
}

// fieldValues maps schema field names to Go values for one message.
type fieldValues map[string]any

// encodeMessage emits one message per the schema definition, fields in
// declaration order so output is deterministic. Zero values are omitted.
func encodeMessage(schema *Schema, messageName string, values fieldValues) ([]byte, error) {
	def, err := schema.Message(messageName)
	if err != nil {
		return nil, err
	}

	var out []byte
	for _, field := range def.Fields {
		value, ok := values[field.Name]
		if !ok {
			continue
		}
		out, err = appendField(schema, out, field, value)
		if err != nil {
			return nil, fmt.Errorf("message %s field %s: %w", messageName, field.Name, err)
		}
	}
	return out, nil
}

func appendField(schema *Schema, out []byte, field FieldDef, value any) ([]byte, error) {
	switch field.Type {
	case "string":
		if field.Repeated {
			items, ok := value.([]string)
			if !ok {
				return nil, fmt.Errorf("expected []string, got %T", value)
			}
			for _, item := range items {
				out = protowire.AppendTag(out, protowire.Number(field.Number), protowire.BytesType)
				out = protowire.AppendString(out, item)
			}
			return out, nil
		}
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		if s == "" {
			return out, nil
		}
		out = protowire.AppendTag(out, protowire.Number(field.Number), protowire.BytesType)
		out = protowire.AppendString(out, s)
		return out, nil

	case "int32", "int64":
		if field.Repeated {
			items, ok := value.([]int32)
			if !ok {
				return nil, fmt.Errorf("expected []int32, got %T", value)
			}
			for _, item := range items {
				out = protowire.AppendTag(out, protowire.Number(field.Number), protowire.VarintType)
				out = protowire.AppendVarint(out, uint64(item))
			}
			return out, nil
		}
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
		out = protowire.AppendTag(out, protowire.Number(field.Number), protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(n))
		return out, nil

	case "bool":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		if !b {
			return out, nil
		}
		out = protowire.AppendTag(out, protowire.Number(field.Number), protowire.VarintType)
		out = protowire.AppendVarint(out, 1)
		return out, nil

	case "enum":
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected enum value name, got %T", value)
		}
		if name == "" {
			return out, nil
		}
		enum, err := schema.Enum(field.Enum)
		if err != nil {
			return nil, err
		}
		n, ok := enum.EnumNumber(name)
		if !ok {
			// Unknown enum values degrade to the unset wire value.
			return out, nil
		}
		if n == 0 {
			return out, nil
		}
		out = protowire.AppendTag(out, protowire.Number(field.Number), protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(n))
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported field type %q", field.Type)
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

// appendDelimited appends one length-prefixed message to a stream.
func appendDelimited(stream, msg []byte) []byte {
	stream = protowire.AppendVarint(stream, uint64(len(msg)))
	return append(stream, msg...)
}
