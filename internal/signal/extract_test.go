package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/examconv/internal/normalize"
	"github.com/dgallion1/examconv/internal/parser"
)

func plain(texts ...string) []parser.Unit {
	units := make([]parser.Unit, 0, len(texts))
	for _, t := range texts {
		units = append(units, parser.Unit{Text: t, Source: parser.SourcePlainText})
	}
	return units
}

func TestExtract_ContiguousIndices(t *testing.T) {
	units := plain("", "1) Capital of France?", "   ", "A) Paris", "\t\n", "", "B) Lyon", "C) Nice", "", "D) Rouen")
	sig := Extract(units, Options{Filename: "exam.txt", ContentType: "text/plain"})

	require.Len(t, sig.Lines, 5)
	for i, line := range sig.Lines {
		assert.Equal(t, i, line.LineIndex)
	}
	assert.Equal(t, "exam.txt", sig.Filename)
	assert.Equal(t, 5, sig.DebugCounts.TotalLines)
	assert.Equal(t, 1, sig.DebugCounts.QuestionStarts)
	assert.Equal(t, 4, sig.DebugCounts.OptionLines)
	assert.Empty(t, sig.Warnings)
}

func TestExtract_KeepsSourceAndHighlight(t *testing.T) {
	units := []parser.Unit{
		{Text: "Q1: Pick one", Source: parser.SourceParagraph},
		{Text: "A) Red", Source: parser.SourceTableCell},
		{Text: "B) Blue", Highlight: true, Source: parser.SourceTableCell},
	}
	sig := Extract(units, Options{})
	require.Len(t, sig.Lines, 3)
	assert.Equal(t, parser.SourceParagraph, sig.Lines[0].Source)
	assert.Equal(t, KindQuestionStart, sig.Lines[0].Kind)
	assert.Equal(t, parser.SourceTableCell, sig.Lines[2].Source)
	assert.True(t, sig.Lines[2].HasHighlight)
	assert.False(t, sig.Lines[1].HasHighlight)
}

func TestExtract_NormalizesAndWarnsOnce(t *testing.T) {
	sig := Extract(plain("1) Whatâ€™s  this?", "A) Itâ€™s\tfine", "B) No"), Options{})
	assert.Equal(t, "1) What's this?", sig.Lines[0].Text)
	assert.Equal(t, "A) It's fine", sig.Lines[1].Text)
	assert.Equal(t, []string{normalize.EncodingWarning}, sig.Warnings)
}

func TestExtract_LowConfidenceWithoutQuestionStarts(t *testing.T) {
	sig := Extract(plain("Some notes", "A) maybe"), Options{})
	assert.Len(t, sig.Lines, 2)
	assert.Zero(t, sig.DebugCounts.QuestionStarts)
	assert.Contains(t, sig.Warnings, LowConfidenceWarning)

	empty := Extract(nil, Options{})
	assert.Empty(t, empty.Lines)
	assert.Contains(t, empty.Warnings, LowConfidenceWarning)
}

func TestExtract_CarriesDocumentWarnings(t *testing.T) {
	doc := &parser.Document{
		ContentType:    "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Units:          plain("1) Q?", "A) a"),
		Warnings:       []string{parser.TrackedChangesWarning},
		TrackedChanges: true,
	}
	sig := FromDocument("exam.docx", doc)
	assert.True(t, sig.HasTrackedChanges)
	assert.Equal(t, "exam.docx", sig.Filename)
	assert.Equal(t, []string{parser.TrackedChangesWarning}, sig.Warnings)
}

func TestParseQuestionStart(t *testing.T) {
	tests := []struct {
		text   string
		number int
		ok     bool
	}{
		{"12. What is the capital?", 12, true},
		{"12.What is...", 0, false},
		{"  3) Which one", 3, true},
		{"Q7: Define entropy", 7, true},
		{"q8. lower case prefix", 8, true},
		{"Q9) paren", 9, true},
		{"12345. too many digits", 0, false},
		{"A) Paris", 0, false},
		{"1.5 liters is", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			n, ok := ParseQuestionStart(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.number, n)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want LineKind
	}{
		{"12. What is the capital?", KindQuestionStart},
		{"12.What is...", KindPlain},
		{"[p1-4] Which statement is true?", KindQuestionStart},
		{"A) Paris", KindOption},
		{"b. Lyon", KindOption},
		{"(C) Nice", KindOption},
		{"*D) Rouen", KindOption},
		{"** A. Starred", KindOption},
		{"E) Out of range", KindPlain},
		{"A)Paris", KindPlain},
		{"Answer key", KindPlain},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.text))
		})
	}
}

func TestParseOption(t *testing.T) {
	letter, body, ok := ParseOption("c) Nice *")
	require.True(t, ok)
	assert.Equal(t, LetterC, letter)
	assert.Equal(t, "Nice *", body)

	letter, body, ok = ParseOption("(a) Paris")
	require.True(t, ok)
	assert.Equal(t, LetterA, letter)
	assert.Equal(t, "Paris", body)

	_, _, ok = ParseOption("Paris")
	assert.False(t, ok)
}

func TestParseAnswerKey(t *testing.T) {
	tests := []struct {
		text string
		want []AnswerKeyEntry
	}{
		{"Q1 - B", []AnswerKeyEntry{{QuestionNumber: 1, Letter: LetterB}}},
		{"2) c", []AnswerKeyEntry{{QuestionNumber: 2, Letter: LetterC}}},
		{"3=D [Chp 4]", []AnswerKeyEntry{{QuestionNumber: 3, Letter: LetterD}}},
		{"Answer key: 1-A, 2-B; 3-C", []AnswerKeyEntry{
			{QuestionNumber: 1, Letter: LetterA},
			{QuestionNumber: 2, Letter: LetterB},
			{QuestionNumber: 3, Letter: LetterC},
		}},
		{"1A 2B", []AnswerKeyEntry{{QuestionNumber: 1, Letter: LetterA}, {QuestionNumber: 2, Letter: LetterB}}},
		{"1) Capital of France?", nil},
		{"4. A cat sat on the mat", nil},
		{"A) Paris", nil},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseAnswerKey(tc.text))
		})
	}
}

func TestIsAnswerKeyHeading(t *testing.T) {
	for _, text := range []string{"Answer Key", "answers:", "  ANSWER KEY [Chp 2]"} {
		assert.True(t, IsAnswerKeyHeading(text), text)
	}
	for _, text := range []string{"Answers to consider", "Q1 - B", "A) Answer key"} {
		assert.False(t, IsAnswerKeyHeading(text), text)
	}
}

func TestExtract_AnswerKeyLastOccurrenceWins(t *testing.T) {
	sig := Extract(plain(
		"1) Capital of France?",
		"A) Paris", "B) Lyon", "C) Nice", "D) Rouen",
		"Answer Key",
		"Q1 - B",
		"Q1 - C [revised]",
	), Options{})

	require.Contains(t, sig.AnswerKey, 1)
	assert.Equal(t, LetterC, sig.AnswerKey[1].Letter)
	assert.Equal(t, 7, sig.AnswerKey[1].LineIndex)
	assert.Equal(t, 2, sig.DebugCounts.AnswerKeyEntries)
	assert.Equal(t, KindPlain, sig.Lines[6].Kind)
}

func TestLetterIndex(t *testing.T) {
	for i, l := range Letters {
		assert.Equal(t, i, l.Index())
	}
	assert.Equal(t, -1, Letter("E").Index())
}

func TestDocumentSignal_Line(t *testing.T) {
	sig := Extract(plain("1) Q?", "A) a"), Options{})
	line, ok := sig.Line(1)
	require.True(t, ok)
	assert.Equal(t, "A) a", line.Text)
	_, ok = sig.Line(2)
	assert.False(t, ok)
	assert.Equal(t, 2, sig.LineCount())

	var nilSig *DocumentSignal
	assert.Zero(t, nilSig.LineCount())
}
