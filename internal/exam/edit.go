package exam

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/examconv/internal/normalize"
)

// EditRow is the flat, reviewer-facing form of a question.
type EditRow struct {
	Number        any    `json:"number"`
	Title         string `json:"title"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectLetter string `json:"correct_letter"`
	Method        string `json:"detected_answer_method"`
	Warnings      string `json:"warnings"` // joined with " | "
	SourceRefs    []int  `json:"source_refs,omitempty"`
	Delete        bool   `json:"delete,omitempty"`
}

var digitsPattern = regexp.MustCompile(`\d+`)

// LetterToIndex maps A-D (any case, surrounding space ignored) to 0-3.
func LetterToIndex(letter string) (int, bool) {
	switch strings.ToUpper(strings.TrimSpace(letter)) {
	case "A":
		return 0, true
	case "B":
		return 1, true
	case "C":
		return 2, true
	case "D":
		return 3, true
	}
	return -1, false
}

// IndexToLetter maps 0-3 to A-D and anything else to "?".
func IndexToLetter(index int) string {
	if index < 0 || index >= OptionCount {
		return "?"
	}
	return string(rune('A' + index))
}

// CoerceNumber turns an edited number cell into an int. The returned warning
// is empty when the value was already a clean integer.
func CoerceNumber(value any) (int, string) {
	switch v := value.(type) {
	case int:
		return v, ""
	case int64:
		return int(v), ""
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			break
		}
		if v != math.Trunc(v) {
			return int(v), "Non-integer question number; truncated to integer"
		}
		return int(v), ""
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), ""
		}
		return CoerceNumber(v.String())
	case string:
		stripped := strings.TrimSpace(v)
		if stripped == "" {
			return 0, "Missing question number; defaulted to 0"
		}
		match := digitsPattern.FindString(stripped)
		if match != "" {
			n, err := strconv.Atoi(match)
			if err == nil {
				if match != stripped {
					return n, fmt.Sprintf("Normalized question number from '%s' to %d", stripped, n)
				}
				return n, ""
			}
		}
	}
	return 0, "Invalid question number; defaulted to 0"
}

// RowsToQuestions converts edited rows back into questions. Deleted rows are
// dropped. An unknown correct letter leaves CorrectIndex at -1 so validation
// rejects it instead of silently choosing A.
func RowsToQuestions(rows []EditRow) []Question {
	out := make([]Question, 0, len(rows))
	for _, row := range rows {
		if row.Delete {
			continue
		}
		q := Question{
			Title: normalize.Text(row.Title, nil),
			Options: [4]string{
				normalize.Text(row.OptionA, nil),
				normalize.Text(row.OptionB, nil),
				normalize.Text(row.OptionC, nil),
				normalize.Text(row.OptionD, nil),
			},
			Method:     AnswerMethod(strings.TrimSpace(row.Method)),
			Warnings:   []string{},
			SourceRefs: append([]int{}, row.SourceRefs...),
		}
		if q.Method == "" {
			q.Method = MethodInferred
		}
		q.CorrectIndex, _ = LetterToIndex(row.CorrectLetter)
		for _, w := range strings.Split(row.Warnings, "|") {
			if w = normalize.Text(w, nil); w != "" {
				AddWarning(&q, w)
			}
		}
		n, warning := CoerceNumber(row.Number)
		q.Number = n
		if warning != "" {
			AddWarning(&q, warning)
		}
		out = append(out, q)
	}
	return out
}

// QuestionsToRows renders questions for review.
func QuestionsToRows(questions []Question) []EditRow {
	rows := make([]EditRow, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, EditRow{
			Number:        q.Number,
			Title:         q.Title,
			OptionA:       q.Options[0],
			OptionB:       q.Options[1],
			OptionC:       q.Options[2],
			OptionD:       q.Options[3],
			CorrectLetter: IndexToLetter(q.CorrectIndex),
			Method:        string(q.Method),
			Warnings:      strings.Join(q.Warnings, " | "),
			SourceRefs:    q.SourceRefs,
		})
	}
	return rows
}
