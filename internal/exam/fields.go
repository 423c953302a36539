package exam

import (
	"regexp"
	"strings"

	"github.com/dgallion1/examconv/internal/normalize"
)

// InstructionWarning flags question text that reads like a prompt injection.
const InstructionWarning = "Question text resembles an instruction to the generator; review before publishing"

var (
	pageMarkerPrefix = regexp.MustCompile(`(?i)^\s*\[(?:p|pp)\.?\s*\d+(?:\s*-\s*\d+)?\]\s*`)
	numberPrefix     = regexp.MustCompile(`(?i)^\s*(?:Q\s*)?\d{1,4}[:.)]\s+`)
	optionPrefix     = regexp.MustCompile(`(?i)^\s*(?:\(?[A-D]\)|[A-D][.)])\s+`)

	yearPattern      = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	inPunctPattern   = regexp.MustCompile(`(?i)\bin\s*[.,?]`)
	yearPlaceholders = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bYYYY\b`),
		regexp.MustCompile(`(?i)\bYEAR\b`),
		regexp.MustCompile(`(?i)\[year\]`),
		regexp.MustCompile(`____`),
	}

	injectionPattern = regexp.MustCompile(
		`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
			`forget\s+(everything|all)|new\s+instructions)`,
	)
)

// Normalize cleans the text fields of a decoded response in place, before
// validation: whitespace and mojibake, page markers, number and option
// prefixes, and asterisk markers around options.
func Normalize(resp *CandidateResponse) {
	if resp == nil {
		return
	}
	resp.Category = normalize.Text(resp.Category, nil)
	for i := range resp.Questions {
		q := &resp.Questions[i]
		if q.Title != nil {
			title := NormalizeTitle(*q.Title)
			q.Title = &title
		}
		for k, opt := range q.Options {
			q.Options[k] = NormalizeOption(opt)
		}
		title := ""
		if q.Title != nil {
			title = *q.Title
		}
		q.Warnings = normalizeWarnings(title, q.Warnings)
	}
}

// NormalizeTitle strips a leading page marker and question number.
func NormalizeTitle(s string) string {
	s = normalize.Text(s, nil)
	s = pageMarkerPrefix.ReplaceAllString(s, "")
	return numberPrefix.ReplaceAllString(s, "")
}

// NormalizeOption strips the option letter and any asterisk marker.
func NormalizeOption(s string) string {
	s = normalize.Text(s, nil)
	s = strings.TrimLeft(s, "* ")
	s = optionPrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(strings.Trim(s, "*"))
}

func normalizeWarnings(title string, warnings []string) []string {
	var out normalize.Warnings
	for _, w := range warnings {
		w = normalize.Text(w, nil)
		if w == "" || !keepBlankYearWarning(title, w) {
			continue
		}
		out.Add(w)
	}
	if out == nil {
		return []string{}
	}
	return out
}

// keepBlankYearWarning drops generator "blank year" warnings unless the title
// really looks like it is missing a year.
func keepBlankYearWarning(title, warning string) bool {
	if !strings.Contains(strings.ToLower(warning), "blank year") {
		return true
	}
	if yearPattern.MatchString(title) {
		return false
	}
	if inPunctPattern.MatchString(title) {
		return true
	}
	for _, re := range yearPlaceholders {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// Finalize converts a response that passed Validate into questions. Missing
// fields are never filled in: callers must not pass an invalid response.
func Finalize(resp *CandidateResponse) []Question {
	if resp == nil {
		return nil
	}
	out := make([]Question, 0, len(resp.Questions))
	for _, c := range resp.Questions {
		q := Question{
			CorrectIndex: -1,
			Warnings:     append([]string{}, c.Warnings...),
			SourceRefs:   append([]int{}, c.SourceRefs...),
		}
		if c.Number != nil {
			q.Number = *c.Number
		}
		if c.Title != nil {
			q.Title = *c.Title
		}
		copy(q.Options[:], c.Options)
		if c.CorrectIndex != nil {
			q.CorrectIndex = *c.CorrectIndex
		}
		if c.DetectedAnswerMethod != nil {
			q.Method = AnswerMethod(*c.DetectedAnswerMethod)
		}
		if looksLikeInstruction(q) {
			AddWarning(&q, InstructionWarning)
		}
		out = append(out, q)
	}
	return out
}

func looksLikeInstruction(q Question) bool {
	if injectionPattern.MatchString(q.Title) {
		return true
	}
	for _, opt := range q.Options {
		if injectionPattern.MatchString(opt) {
			return true
		}
	}
	return false
}

// AddWarning appends msg to the question's warnings unless already present.
func AddWarning(q *Question, msg string) {
	(*normalize.Warnings)(&q.Warnings).Add(msg)
}
