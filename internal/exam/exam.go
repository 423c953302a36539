package exam

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// SchemaName identifies the structured-output contract sent to generators.
const SchemaName = "exam_questions_v1"

// OptionCount is the fixed number of options per question (A-D).
const OptionCount = 4

// AnswerMethod records how the correct option was determined.
type AnswerMethod string

const (
	MethodAsterisk  AnswerMethod = "asterisk"
	MethodHighlight AnswerMethod = "highlight"
	MethodAnswerKey AnswerMethod = "answer_key"
	MethodInferred  AnswerMethod = "inferred"
)

// Methods lists the recognized answer methods in precedence order.
var Methods = []AnswerMethod{MethodAsterisk, MethodHighlight, MethodAnswerKey, MethodInferred}

// Valid reports whether m is a recognized method.
func (m AnswerMethod) Valid() bool {
	switch m {
	case MethodAsterisk, MethodHighlight, MethodAnswerKey, MethodInferred:
		return true
	}
	return false
}

// Question is a validated multiple-choice question.
type Question struct {
	Number       int          `json:"number"`
	Title        string       `json:"title"`
	Options      [4]string    `json:"options"`
	CorrectIndex int          `json:"correct_index"`
	Method       AnswerMethod `json:"detected_answer_method"`
	Warnings     []string     `json:"warnings"`
	SourceRefs   []int        `json:"source_refs"`
}

// CorrectOption returns the text of the correct option, or "" when the
// index is out of range.
func (q Question) CorrectOption() string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= OptionCount {
		return ""
	}
	return q.Options[q.CorrectIndex]
}

// CandidateQuestion is one question as decoded from generator output.
// Pointer fields stay nil when the generator omitted them.
type CandidateQuestion struct {
	Number               *int     `json:"number"`
	Title                *string  `json:"title"`
	Options              []string `json:"options"`
	CorrectIndex         *int     `json:"correct_index"`
	DetectedAnswerMethod *string  `json:"detected_answer_method"`
	Warnings             []string `json:"warnings"`
	SourceRefs           []int    `json:"source_refs"`
}

// CandidateResponse is the decoded top-level generator output.
type CandidateResponse struct {
	Category  string              `json:"category"`
	Questions []CandidateQuestion `json:"questions"`
}

// ErrEmptyResponse is returned by Decode for blank generator output.
var ErrEmptyResponse = eris.New("exam: empty response")

// ErrTrailingData is returned by Decode when more than one JSON value follows.
var ErrTrailingData = eris.New("exam: trailing data after response object")

// Decode parses generator output strictly, tolerating a surrounding markdown
// fence. Keys outside exam_questions_v1 are rejected.
func Decode(raw string) (*CandidateResponse, error) {
	text := StripCodeBlock(raw)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	var resp CandidateResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, eris.Wrap(err, "exam: decode response")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return &resp, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeBlock removes a markdown code fence wrapping JSON output.
func StripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// Candidate converts a validated question back into candidate form so the
// same validator can check manual edits.
func (q Question) Candidate() CandidateQuestion {
	number := q.Number
	title := q.Title
	index := q.CorrectIndex
	method := string(q.Method)
	return CandidateQuestion{
		Number:               &number,
		Title:                &title,
		Options:              append([]string(nil), q.Options[:]...),
		CorrectIndex:         &index,
		DetectedAnswerMethod: &method,
		Warnings:             q.Warnings,
		SourceRefs:           q.SourceRefs,
	}
}
