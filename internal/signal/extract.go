package signal

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/examconv/internal/normalize"
	"github.com/dgallion1/examconv/internal/parser"
)

// LowConfidenceWarning is attached when no line looks like a question start.
const LowConfidenceWarning = "No question start lines detected; results are low confidence"

var (
	numberedStart = regexp.MustCompile(`^\s*(\d{1,4})[.)]\s+\S`)
	prefixedStart = regexp.MustCompile(`(?i)^\s*Q(\d{1,4})[:.)]\s+\S`)
	// Page-reference markers like [p1-4] or [pp. 2-6] open a question too.
	pageMarkerStart = regexp.MustCompile(`(?i)^\s*\[[^\]]*p\d+[^\]]*\]`)

	optionDelimited = regexp.MustCompile(`(?i)^\s*\*{0,2}\s*([A-D])[.)]\s+(\S.*)$`)
	optionParens    = regexp.MustCompile(`(?i)^\s*\*{0,2}\s*\(([A-D])\)\s+(\S.*)$`)

	trailingAnnotation = regexp.MustCompile(`\s*\[[^\]]+\]\s*$`)
	answerKeyLabel     = regexp.MustCompile(`(?i)^\s*answers?(?:\s+key)?\s*[:\-]?\s*`)
	answerKeyHeading   = regexp.MustCompile(`(?i)^\s*answers?(?:\s+key)?\s*:?\s*$`)
	answerKeyEntry     = regexp.MustCompile(`(?i)(?:Q\s*)?(\d{1,4})\s*[.)]?\s*[:=\-]?\s*([A-D])`)
	answerKeyLine      = regexp.MustCompile(`(?i)^\s*` + entryExpr + `(?:[\s,;]+` + entryExpr + `)*[\s,;.]*$`)
)

const entryExpr = `(?:Q\s*)?\d{1,4}\s*[.)]?\s*[:=\-]?\s*[A-D]`

// Options carries per-file context that does not come from the units.
type Options struct {
	Filename       string
	ContentType    string
	Warnings       []string
	TrackedChanges bool
}

// FromDocument extracts the signal of a parsed document.
func FromDocument(filename string, doc *parser.Document) *DocumentSignal {
	return Extract(doc.Units, Options{
		Filename:       filename,
		ContentType:    doc.ContentType,
		Warnings:       doc.Warnings,
		TrackedChanges: doc.TrackedChanges,
	})
}

// Extract normalizes and classifies units in order. Empty units are skipped
// and every kept unit gets the next contiguous line index.
func Extract(units []parser.Unit, opts Options) *DocumentSignal {
	var warnings normalize.Warnings
	warnings.Merge(opts.Warnings)

	sig := &DocumentSignal{
		Filename:          opts.Filename,
		ContentType:       opts.ContentType,
		Lines:             make([]DocumentLine, 0, len(units)),
		AnswerKey:         map[int]AnswerKeyEntry{},
		HasTrackedChanges: opts.TrackedChanges,
	}

	for _, u := range units {
		text := normalize.Text(u.Text, &warnings)
		if text == "" {
			continue
		}
		line := DocumentLine{
			LineIndex:    len(sig.Lines),
			Text:         text,
			HasHighlight: u.Highlight,
			Source:       u.Source,
			Kind:         Classify(text),
		}
		sig.Lines = append(sig.Lines, line)
		sig.count(line)
	}

	sig.DebugCounts.TotalLines = len(sig.Lines)
	if sig.DebugCounts.QuestionStarts == 0 {
		warnings.Add(LowConfidenceWarning)
	}
	sig.Warnings = []string(warnings)
	if sig.Warnings == nil {
		sig.Warnings = []string{}
	}
	return sig
}

// count updates the debug counts and the answer key. Each pattern family is
// counted on its own, regardless of which kind the line was classified as.
func (s *DocumentSignal) count(line DocumentLine) {
	if IsQuestionStart(line.Text) {
		s.DebugCounts.QuestionStarts++
	}
	if _, _, ok := ParseOption(line.Text); ok {
		s.DebugCounts.OptionLines++
	}
	for _, e := range ParseAnswerKey(line.Text) {
		e.LineIndex = line.LineIndex
		s.AnswerKey[e.QuestionNumber] = e // last occurrence wins
		s.DebugCounts.AnswerKeyEntries++
	}
}

// Classify applies the fixed precedence: question start, then option, else plain.
func Classify(text string) LineKind {
	if IsQuestionStart(text) {
		return KindQuestionStart
	}
	if _, _, ok := ParseOption(text); ok {
		return KindOption
	}
	return KindPlain
}

// IsQuestionStart reports whether text opens a question, numbered or not.
func IsQuestionStart(text string) bool {
	if _, ok := ParseQuestionStart(text); ok {
		return true
	}
	return pageMarkerStart.MatchString(text)
}

// ParseQuestionStart returns the number of a "12. ..." or "Q12: ..." line.
func ParseQuestionStart(text string) (int, bool) {
	m := numberedStart.FindStringSubmatch(text)
	if m == nil {
		m = prefixedStart.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseOption returns the upper-cased letter and the text after the delimiter.
// Leading asterisks are allowed before the letter.
func ParseOption(text string) (Letter, string, bool) {
	m := optionDelimited.FindStringSubmatch(text)
	if m == nil {
		m = optionParens.FindStringSubmatch(text)
	}
	if m == nil {
		return "", "", false
	}
	return Letter(strings.ToUpper(m[1])), m[2], true
}

// StripAnnotation removes a trailing bracketed annotation such as "[Chp 1]".
func StripAnnotation(text string) string {
	return trailingAnnotation.ReplaceAllString(text, "")
}

// IsAnswerKeyHeading reports a line that only labels an answer key block,
// such as "Answer Key" or "Answers:".
func IsAnswerKeyHeading(text string) bool {
	return answerKeyHeading.MatchString(StripAnnotation(text))
}

// ParseAnswerKey returns the entries of an answer-key line. The whole line,
// after an optional "Answer key:" label and trailing annotation, must be made
// of entries such as "Q1 - B", "2) C" or "3=D".
func ParseAnswerKey(text string) []AnswerKeyEntry {
	cleaned := StripAnnotation(text)
	cleaned = answerKeyLabel.ReplaceAllString(cleaned, "")
	if !answerKeyLine.MatchString(cleaned) {
		return nil
	}
	var entries []AnswerKeyEntry
	for _, m := range answerKeyEntry.FindAllStringSubmatch(cleaned, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		entries = append(entries, AnswerKeyEntry{
			QuestionNumber: n,
			Letter:         Letter(strings.ToUpper(m[2])),
		})
	}
	return entries
}
