package signal

import "github.com/dgallion1/examconv/internal/parser"

// LineKind is the classification of a kept line.
type LineKind string

const (
	KindQuestionStart LineKind = "question_start"
	KindOption        LineKind = "option"
	KindPlain         LineKind = "plain"
)

// Letter is an option letter, A through D.
type Letter string

const (
	LetterA Letter = "A"
	LetterB Letter = "B"
	LetterC Letter = "C"
	LetterD Letter = "D"
)

// Letters lists the option letters in index order.
var Letters = [4]Letter{LetterA, LetterB, LetterC, LetterD}

// Index returns 0-3 for A-D and -1 otherwise.
func (l Letter) Index() int {
	switch l {
	case LetterA:
		return 0
	case LetterB:
		return 1
	case LetterC:
		return 2
	case LetterD:
		return 3
	}
	return -1
}

// DocumentLine is a kept, classified line. Immutable once extracted.
type DocumentLine struct {
	LineIndex    int               `json:"line_index" yaml:"line_index"`
	Text         string            `json:"text" yaml:"text"`
	HasHighlight bool              `json:"has_highlight" yaml:"has_highlight"`
	Source       parser.SourceKind `json:"source_unit" yaml:"source_unit"`
	Kind         LineKind          `json:"kind" yaml:"kind"`
}

// DebugCounts are diagnostic tallies; nothing branches on them.
type DebugCounts struct {
	TotalLines       int `json:"total_lines" yaml:"total_lines"`
	QuestionStarts   int `json:"question_starts" yaml:"question_starts"`
	OptionLines      int `json:"option_lines" yaml:"option_lines"`
	AnswerKeyEntries int `json:"answer_key_entries" yaml:"answer_key_entries"`
}

// AnswerKeyEntry maps a question number to its letter in a key block.
type AnswerKeyEntry struct {
	QuestionNumber int    `json:"question_number" yaml:"question_number"`
	Letter         Letter `json:"letter" yaml:"letter"`
	LineIndex      int    `json:"line_index" yaml:"line_index"`
}

// DocumentSignal is the normalized, line-indexed view of one source file.
type DocumentSignal struct {
	Filename          string                 `json:"source_filename" yaml:"source_filename"`
	ContentType       string                 `json:"content_type" yaml:"content_type"`
	Lines             []DocumentLine         `json:"lines" yaml:"lines"`
	DebugCounts       DebugCounts            `json:"debug_counts" yaml:"debug_counts"`
	AnswerKey         map[int]AnswerKeyEntry `json:"answer_key,omitempty" yaml:"answer_key,omitempty"`
	Warnings          []string               `json:"warnings" yaml:"warnings"`
	HasTrackedChanges bool                   `json:"has_tracked_changes" yaml:"has_tracked_changes"`
}

// Line returns the line at index i, or false when i is out of range.
func (s *DocumentSignal) Line(i int) (DocumentLine, bool) {
	if s == nil || i < 0 || i >= len(s.Lines) {
		return DocumentLine{}, false
	}
	return s.Lines[i], true
}

// LineCount is the number of kept lines.
func (s *DocumentSignal) LineCount() int {
	if s == nil {
		return 0
	}
	return len(s.Lines)
}
