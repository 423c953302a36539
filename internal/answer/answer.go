package answer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/examconv/internal/exam"
	"github.com/dgallion1/examconv/internal/normalize"
	"github.com/dgallion1/examconv/internal/signal"
)

// Warnings recorded by the detector.
const (
	InferredWarning          = "Correct answer inferred: no asterisk, highlight or answer key found; lower confidence"
	MultipleAsterisksWarning = "Multiple options marked with an asterisk; asterisk markers ignored"
	MultipleHighlightWarning = "Multiple options highlighted; highlight ignored"
	ConflictWarning          = "Asterisk and highlight mark different options; using the asterisk"
	MissingKeyOptionWarning  = "Answer key letter does not match an option line"
)

var (
	asteriskBeforeLetter = regexp.MustCompile(`(?i)^\s*\*{1,2}\s*\(?[A-D][.)]`)
	asteriskAfterDelim   = regexp.MustCompile(`(?i)^\s*\(?[A-D][.)]\s*\*`)
	asteriskAtEnd        = regexp.MustCompile(`\*\s*$`)
)

// Candidate is a question start line plus the option lines that follow it.
// Plain lines between the start and the first option continue the title.
type Candidate struct {
	Number       int
	Start        signal.DocumentLine
	Continuation []signal.DocumentLine
	Options      []Option
}

// Option is an option line plus the plain lines wrapped under it.
type Option struct {
	signal.DocumentLine
	Continuation []signal.DocumentLine
}

// Starred reports an asterisk on the option line or at the end of its last
// wrapped line.
func (o Option) Starred() bool {
	if HasAsterisk(o.Text) {
		return true
	}
	n := len(o.Continuation)
	return n > 0 && asteriskAtEnd.MatchString(o.Continuation[n-1].Text)
}

// Highlighted reports a highlight on the option line or any wrapped line.
func (o Option) Highlighted() bool {
	if o.HasHighlight {
		return true
	}
	for _, line := range o.Continuation {
		if line.HasHighlight {
			return true
		}
	}
	return false
}

// Detection is the locally determined answer for one candidate.
type Detection struct {
	Number       int               `json:"number"`
	Method       exam.AnswerMethod `json:"detected_answer_method"`
	CorrectIndex int               `json:"correct_index"` // -1 when undetermined
	Warnings     []string          `json:"warnings"`
	SourceRefs   []int             `json:"source_refs"`
}

// Determined reports whether local evidence picked an option.
func (d Detection) Determined() bool {
	return d.Method != exam.MethodInferred && d.CorrectIndex >= 0
}

// Candidates delimits questions in the signal. Start lines without a number
// (page markers) are numbered by their position among start lines. Once
// options begin, plain lines wrap under the last option until the next start
// or an answer key. Candidates with no option lines are dropped.
func Candidates(sig *signal.DocumentSignal) []Candidate {
	var (
		out     []Candidate
		current *Candidate
		starts  int
	)
	closeCurrent := func() {
		if current != nil && len(current.Options) > 0 {
			out = append(out, *current)
		}
		current = nil
	}

	for _, line := range sig.Lines {
		switch line.Kind {
		case signal.KindQuestionStart:
			closeCurrent()
			starts++
			n, ok := signal.ParseQuestionStart(line.Text)
			if !ok {
				n = starts
			}
			current = &Candidate{Number: n, Start: line}
		case signal.KindOption:
			if current != nil {
				current.Options = append(current.Options, Option{DocumentLine: line})
			}
		default:
			if current == nil {
				continue
			}
			if len(current.Options) == 0 {
				current.Continuation = append(current.Continuation, line)
				continue
			}
			if signal.IsAnswerKeyHeading(line.Text) || len(signal.ParseAnswerKey(line.Text)) > 0 {
				closeCurrent()
				continue
			}
			last := &current.Options[len(current.Options)-1]
			last.Continuation = append(last.Continuation, line)
		}
	}
	closeCurrent()
	return out
}

// Detect applies the fixed precedence asterisk > highlight > answer_key >
// inferred. A method that marks more than one option is skipped with a
// warning. It never defaults to option A.
func Detect(c Candidate, key map[int]signal.AnswerKeyEntry) Detection {
	d := Detection{Number: c.Number, Method: exam.MethodInferred, CorrectIndex: -1}
	var warnings normalize.Warnings

	var starred, highlighted []signal.DocumentLine
	byIndex := map[int]signal.DocumentLine{}
	for _, opt := range c.Options {
		letter, _, ok := signal.ParseOption(opt.Text)
		if !ok {
			continue
		}
		if _, dup := byIndex[letter.Index()]; dup {
			continue
		}
		byIndex[letter.Index()] = opt.DocumentLine
		if opt.Starred() {
			starred = append(starred, opt.DocumentLine)
		}
		if opt.Highlighted() {
			highlighted = append(highlighted, opt.DocumentLine)
		}
	}

	asterisk := pick(starred, MultipleAsterisksWarning, &warnings)
	highlight := pick(highlighted, MultipleHighlightWarning, &warnings)

	switch {
	case asterisk != nil:
		d.Method = exam.MethodAsterisk
		d.CorrectIndex = optionIndex(*asterisk)
		d.SourceRefs = []int{c.Start.LineIndex, asterisk.LineIndex}
		if highlight != nil && optionIndex(*highlight) != d.CorrectIndex {
			warnings.Add(ConflictWarning)
		}
	case highlight != nil:
		d.Method = exam.MethodHighlight
		d.CorrectIndex = optionIndex(*highlight)
		d.SourceRefs = []int{c.Start.LineIndex, highlight.LineIndex}
	default:
		if entry, ok := key[c.Number]; ok {
			d.Method = exam.MethodAnswerKey
			d.CorrectIndex = entry.Letter.Index()
			d.SourceRefs = []int{c.Start.LineIndex, entry.LineIndex}
			if _, ok := byIndex[d.CorrectIndex]; !ok {
				warnings.Add(MissingKeyOptionWarning)
			}
		} else {
			warnings.Add(InferredWarning)
		}
	}

	d.Warnings = []string(warnings)
	if d.Warnings == nil {
		d.Warnings = []string{}
	}
	return d
}

// DetectAll runs Detect over every candidate of the signal, keyed by
// question number. The first candidate wins when numbers repeat.
func DetectAll(sig *signal.DocumentSignal) map[int]Detection {
	out := map[int]Detection{}
	for _, c := range Candidates(sig) {
		if _, seen := out[c.Number]; seen {
			continue
		}
		out[c.Number] = Detect(c, sig.AnswerKey)
	}
	return out
}

// HasAsterisk reports an asterisk before the option letter, right after the
// delimiter, or at the end of the option text.
func HasAsterisk(text string) bool {
	return asteriskBeforeLetter.MatchString(text) ||
		asteriskAfterDelim.MatchString(text) ||
		asteriskAtEnd.MatchString(text)
}

func pick(lines []signal.DocumentLine, multiple string, warnings *normalize.Warnings) *signal.DocumentLine {
	switch len(lines) {
	case 0:
		return nil
	case 1:
		return &lines[0]
	}
	warnings.Add(multiple)
	return nil
}

func optionIndex(line signal.DocumentLine) int {
	letter, _, _ := signal.ParseOption(line.Text)
	return letter.Index()
}

// Reconcile enforces local evidence on generator output. A question with a
// local determination takes its method and index; a generator claim of a
// marker that the signal does not show is kept but flagged. Inferred answers
// always carry the lower-confidence warning.
func Reconcile(questions []exam.Question, detections map[int]Detection) []exam.Question {
	out := make([]exam.Question, len(questions))
	for i, q := range questions {
		q.Warnings = append([]string{}, q.Warnings...)
		d, ok := detections[q.Number]
		switch {
		case ok && d.Determined():
			if q.Method != d.Method || q.CorrectIndex != d.CorrectIndex {
				exam.AddWarning(&q, fmt.Sprintf("Generator answer %s (%s) replaced by %s from the document (%s)",
					exam.IndexToLetter(q.CorrectIndex), q.Method, exam.IndexToLetter(d.CorrectIndex), d.Method))
			}
			q.Method = d.Method
			q.CorrectIndex = d.CorrectIndex
		case q.Method != exam.MethodInferred:
			exam.AddWarning(&q, fmt.Sprintf("Answer method %s not confirmed by the document signal", q.Method))
		}
		if ok {
			for _, w := range d.Warnings {
				if w == InferredWarning && q.Method != exam.MethodInferred {
					continue
				}
				exam.AddWarning(&q, w)
			}
		}
		if q.Method == exam.MethodInferred {
			exam.AddWarning(&q, InferredWarning)
		}
		q.Warnings = dedupe(q.Warnings)
		out[i] = q
	}
	return out
}

func dedupe(ws []string) []string {
	var out normalize.Warnings
	for _, w := range ws {
		out.Add(strings.TrimSpace(w))
	}
	if out == nil {
		return []string{}
	}
	return out
}
