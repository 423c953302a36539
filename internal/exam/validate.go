package exam

import (
	"fmt"
	"strings"
)

// Violation names one failed schema constraint.
type Violation struct {
	Path       string `json:"path"`
	Constraint string `json:"constraint"`
}

func (v Violation) String() string {
	return v.Path + ": " + v.Constraint
}

// Validate checks a decoded response against exam_questions_v1. lineCount is
// the number of lines in the signal the response was produced from; every
// source ref must fall inside it. An empty result means the response is valid.
func Validate(resp *CandidateResponse, lineCount int) []Violation {
	if resp == nil {
		return []Violation{{Path: "$", Constraint: "must be a JSON object"}}
	}
	if len(resp.Questions) == 0 {
		return []Violation{{Path: "questions", Constraint: "must be a non-empty array"}}
	}

	var out []Violation
	seen := map[int]int{}
	for i, q := range resp.Questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		add := func(field, constraint string) {
			out = append(out, Violation{Path: prefix + field, Constraint: constraint})
		}

		switch {
		case q.Number == nil:
			add(".number", "is required")
		case *q.Number < 1:
			add(".number", "must be an integer >= 1")
		default:
			if first, dup := seen[*q.Number]; dup {
				add(".number", fmt.Sprintf("must be unique; %d is also used by questions[%d]", *q.Number, first))
			} else {
				seen[*q.Number] = i
			}
		}

		if q.Title == nil || strings.TrimSpace(*q.Title) == "" {
			add(".title", "must be a non-empty string")
		}

		if len(q.Options) != OptionCount {
			add(".options", fmt.Sprintf("must have exactly %d items, got %d", OptionCount, len(q.Options)))
		} else {
			for k, opt := range q.Options {
				if strings.TrimSpace(opt) == "" {
					add(fmt.Sprintf(".options[%d]", k), "must be a non-empty string")
				}
			}
		}

		switch {
		case q.CorrectIndex == nil:
			add(".correct_index", "is required")
		case *q.CorrectIndex < 0 || *q.CorrectIndex >= OptionCount:
			add(".correct_index", fmt.Sprintf("must be between 0 and %d, got %d", OptionCount-1, *q.CorrectIndex))
		}

		if q.DetectedAnswerMethod == nil || !AnswerMethod(*q.DetectedAnswerMethod).Valid() {
			add(".detected_answer_method", "must be one of asterisk, highlight, answer_key, inferred")
		}

		for k, ref := range q.SourceRefs {
			if ref < 0 || ref >= lineCount {
				add(fmt.Sprintf(".source_refs[%d]", k), fmt.Sprintf("must reference a line index in [0, %d), got %d", lineCount, ref))
			}
		}
	}
	return out
}

// ValidateQuestions re-checks an already finalized set, e.g. after manual
// edits. It applies exactly the checks Validate applies.
func ValidateQuestions(questions []Question, lineCount int) []Violation {
	resp := &CandidateResponse{Questions: make([]CandidateQuestion, 0, len(questions))}
	for _, q := range questions {
		resp.Questions = append(resp.Questions, q.Candidate())
	}
	return Validate(resp, lineCount)
}

// Describe renders violations one per line for prompts and error messages.
func Describe(violations []Violation) string {
	lines := make([]string, 0, len(violations))
	for _, v := range violations {
		lines = append(lines, "- "+v.String())
	}
	return strings.Join(lines, "\n")
}
