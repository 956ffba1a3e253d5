package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction"
)

func findingSchema(cross bool) map[string]any {
	types := make([]any, len(contradiction.Types))
	for i, t := range contradiction.Types {
		types[i] = string(t)
	}
	nullableInt := map[string]any{"type": []any{"integer", "null"}, "minimum": 1}
	nullableText := map[string]any{"type": []any{"string", "null"}}
	props := map[string]any{
		"type":            map[string]any{"type": "string", "enum": types},
		"severity":        map[string]any{"type": "string", "enum": severityEnum()},
		"title":           map[string]any{"type": "string", "minLength": 1},
		"description":     map[string]any{"type": "string", "minLength": 1},
		"pageNumber":      nullableInt,
		"lineNumber":      nullableInt,
		"textSnippet":     nullableText,
		"potentialImpact": nullableText,
		"recommendation":  map[string]any{"type": "string", "minLength": 1},
		"suggestedFix":    map[string]any{"type": "string", "minLength": 1},
		"financialImpact": nullableText,
		"preventedLoss":   nullableText,
	}
	required := []any{"type", "severity", "title", "description", "recommendation", "suggestedFix"}
	if cross {
		props["documents"] = map[string]any{
			"type":     "array",
			"minItems": 2,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"documentId"},
				"properties": map[string]any{
					"documentId":   map[string]any{"type": "string"},
					"documentName": nullableText,
					"snippet":      nullableText,
				},
			},
		}
		required = append(required, "documents")
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}

func severityEnum() []any {
	return []any{
		string(contradiction.SeverityLow), string(contradiction.SeverityMedium),
		string(contradiction.SeverityHigh), string(contradiction.SeverityCritical),
	}
}

func envelopeSchema(listKey string, cross bool) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{listKey, "summary", "riskLevel", "confidenceScore"},
		"properties": map[string]any{
			listKey:           map[string]any{"type": "array", "items": findingSchema(cross)},
			"summary":         map[string]any{"type": "string", "minLength": 1},
			"riskLevel":       map[string]any{"type": "string", "enum": severityEnum()},
			"confidenceScore": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		},
	}
}

func singleSchema() map[string]any { return envelopeSchema("contradictions", false) }

func crossSchema() map[string]any { return envelopeSchema("crossDocumentContradictions", true) }

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return s, nil
}

// violations lists schema errors as "location: message" lines, nil when v conforms.
func violations(s *jsonschema.Schema, v any) []string {
	err := s.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range ve.BasicOutput().Errors {
		if strings.TrimSpace(e.Error) == "" {
			continue
		}
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out = append(out, loc+": "+e.Error)
	}
	if len(out) == 0 {
		out = []string{ve.Error()}
	}
	return out
}
