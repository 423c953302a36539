package prompt

import "github.com/dgallion1/examconv/internal/exam"

// Schema returns the JSON schema descriptor for exam_questions_v1. A fresh
// map is built on every call so callers may hand it to SDKs that mutate.
func Schema() map[string]any {
	methods := make([]any, 0, len(exam.Methods))
	for _, m := range exam.Methods {
		methods = append(methods, string(m))
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"category", "questions"},
		"properties": map[string]any{
			"category": map[string]any{"type": "string"},
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required": []any{
						"number", "title", "options", "correct_index",
						"detected_answer_method", "warnings", "source_refs",
					},
					"properties": map[string]any{
						"number": map[string]any{"type": "integer", "minimum": 1},
						"title":  map[string]any{"type": "string", "minLength": 1},
						"options": map[string]any{
							"type":     "array",
							"minItems": exam.OptionCount,
							"maxItems": exam.OptionCount,
							"items":    map[string]any{"type": "string", "minLength": 1},
						},
						"correct_index": map[string]any{"type": "integer", "minimum": 0, "maximum": exam.OptionCount - 1},
						"detected_answer_method": map[string]any{
							"type": "string",
							"enum": methods,
						},
						"warnings": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"source_refs": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "integer", "minimum": 0},
						},
					},
				},
			},
		},
	}
}
