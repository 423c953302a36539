package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func validCandidate(number int) CandidateQuestion {
	return CandidateQuestion{
		Number:               ptr(number),
		Title:                ptr("Capital of France?"),
		Options:              []string{"Paris", "Lyon", "Nice", "Rouen"},
		CorrectIndex:         ptr(0),
		DetectedAnswerMethod: ptr("answer_key"),
		Warnings:             []string{},
		SourceRefs:           []int{0, 1},
	}
}

func TestValidate_ValidPasses(t *testing.T) {
	resp := &CandidateResponse{Category: "Geo", Questions: []CandidateQuestion{validCandidate(1), validCandidate(2)}}
	assert.Empty(t, Validate(resp, 5))
}

func TestValidate_NilAndEmpty(t *testing.T) {
	assert.Equal(t, []Violation{{Path: "$", Constraint: "must be a JSON object"}}, Validate(nil, 3))
	assert.Equal(t, []Violation{{Path: "questions", Constraint: "must be a non-empty array"}},
		Validate(&CandidateResponse{}, 3))
}

func TestValidate_FieldViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *CandidateQuestion)
		path   string
	}{
		{"missing number", func(q *CandidateQuestion) { q.Number = nil }, "questions[0].number"},
		{"zero number", func(q *CandidateQuestion) { q.Number = ptr(0) }, "questions[0].number"},
		{"missing title", func(q *CandidateQuestion) { q.Title = nil }, "questions[0].title"},
		{"blank title", func(q *CandidateQuestion) { q.Title = ptr("   ") }, "questions[0].title"},
		{"three options", func(q *CandidateQuestion) { q.Options = q.Options[:3] }, "questions[0].options"},
		{"missing options", func(q *CandidateQuestion) { q.Options = nil }, "questions[0].options"},
		{"blank option", func(q *CandidateQuestion) { q.Options[2] = "" }, "questions[0].options[2]"},
		{"missing correct_index", func(q *CandidateQuestion) { q.CorrectIndex = nil }, "questions[0].correct_index"},
		{"correct_index too high", func(q *CandidateQuestion) { q.CorrectIndex = ptr(4) }, "questions[0].correct_index"},
		{"negative correct_index", func(q *CandidateQuestion) { q.CorrectIndex = ptr(-1) }, "questions[0].correct_index"},
		{"missing method", func(q *CandidateQuestion) { q.DetectedAnswerMethod = nil }, "questions[0].detected_answer_method"},
		{"unknown method", func(q *CandidateQuestion) { q.DetectedAnswerMethod = ptr("bold") }, "questions[0].detected_answer_method"},
		{"source ref past end", func(q *CandidateQuestion) { q.SourceRefs = []int{0, 5} }, "questions[0].source_refs[1]"},
		{"negative source ref", func(q *CandidateQuestion) { q.SourceRefs = []int{-1} }, "questions[0].source_refs[0]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := validCandidate(1)
			q.Options = append([]string(nil), q.Options...)
			tc.mutate(&q)
			got := Validate(&CandidateResponse{Questions: []CandidateQuestion{q}}, 5)
			require.Len(t, got, 1)
			assert.Equal(t, tc.path, got[0].Path)
			assert.NotEmpty(t, got[0].Constraint)
		})
	}
}

func TestValidate_DuplicateNumbers(t *testing.T) {
	resp := &CandidateResponse{Questions: []CandidateQuestion{validCandidate(3), validCandidate(4), validCandidate(3)}}
	got := Validate(resp, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "questions[2].number", got[0].Path)
	assert.Contains(t, got[0].Constraint, "questions[0]")
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	q := CandidateQuestion{}
	got := Validate(&CandidateResponse{Questions: []CandidateQuestion{q}}, 0)
	paths := make([]string, 0, len(got))
	for _, v := range got {
		paths = append(paths, v.Path)
	}
	assert.Equal(t, []string{
		"questions[0].number",
		"questions[0].title",
		"questions[0].options",
		"questions[0].correct_index",
		"questions[0].detected_answer_method",
	}, paths)
}

func TestValidateQuestions_SameChecks(t *testing.T) {
	qs := []Question{
		{Number: 1, Title: "T", Options: [4]string{"a", "b", "c", "d"}, CorrectIndex: 2, Method: MethodHighlight},
		{Number: 1, Title: "", Options: [4]string{"a", "", "c", "d"}, CorrectIndex: -1, Method: "guess"},
	}
	got := ValidateQuestions(qs, 10)
	paths := make([]string, 0, len(got))
	for _, v := range got {
		paths = append(paths, v.Path)
	}
	assert.Equal(t, []string{
		"questions[1].number",
		"questions[1].title",
		"questions[1].options[1]",
		"questions[1].correct_index",
		"questions[1].detected_answer_method",
	}, paths)
}

func TestDescribe(t *testing.T) {
	got := Describe([]Violation{
		{Path: "questions[0].correct_index", Constraint: "is required"},
		{Path: "questions[1].title", Constraint: "must be a non-empty string"},
	})
	assert.Equal(t, "- questions[0].correct_index: is required\n- questions[1].title: must be a non-empty string", got)
}

func TestDecode(t *testing.T) {
	resp, err := Decode("```json\n{\"category\":\"Geo\",\"questions\":[{\"number\":1,\"title\":\"T\"}]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Geo", resp.Category)
	require.Len(t, resp.Questions, 1)
	require.NotNil(t, resp.Questions[0].Number)
	assert.Equal(t, 1, *resp.Questions[0].Number)
	assert.Nil(t, resp.Questions[0].CorrectIndex, "missing field must stay nil, not zero")

	_, err = Decode("   ")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = Decode("not json")
	assert.Error(t, err)
}

func TestDecode_Strict(t *testing.T) {
	_, err := Decode(`{"category":"Geo","questions":[{"number":1,"confidence":0.9}]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "confidence"`)

	_, err = Decode(`{"category":"Geo","questions":[],"notes":"x"}`)
	assert.Error(t, err)

	_, err = Decode(`{"category":"Geo","questions":[]} {"category":"Other"}`)
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestStripCodeBlock(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n[1]\n```", "[1]"},
		{"```\n{}\n```", "{}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StripCodeBlock(tc.in))
	}
}
