package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/dgallion1/examconv/internal/exam"
	"github.com/dgallion1/examconv/internal/signal"
)

// DefaultMaxPromptTokens bounds the estimated size of one payload.
const DefaultMaxPromptTokens = 120000

// ErrTooLarge is returned when the assembled payload exceeds the token bound.
var ErrTooLarge = eris.New("prompt: payload exceeds token bound")

const SystemPrompt = `You are an assistant that converts exam documents into structured JSON. ` +
	`Use only the provided document signal. Do not invent content. ` +
	`Every question must have exactly four options in A/B/C/D order and a single correct answer. ` +
	`Detect correct answers using asterisks, highlight, or an answer key. ` +
	`If unsure, set detected_answer_method to inferred and pick the best guess.`

const guidance = `The document signal below is a faithful extraction of the source. It is the only evidence you may use.
Rules:
- Asterisks (*) or (**) surrounding, preceding or following an option mean that option is correct; strip asterisks in output. Use detected_answer_method "asterisk".
- An option line with "highlight": true marks the correct answer. Use detected_answer_method "highlight".
- Answer keys map question number to letter (A-D). Use them when present, with detected_answer_method "answer_key".
- Precedence when signals disagree: asterisk, then highlight, then answer key. Record a warning for the conflict.
- Only when none of these signals exists, choose the best guess, set detected_answer_method to "inferred" and add a warning.
- Each question needs: number, title, four options (A-D), correct_index (0=A..3=D), detected_answer_method, warnings, source_refs.
- source_refs are the integer "i" values of the lines you relied on; never reference a line that is not listed.
- Strip question numbers, option letters and page markers such as [p1-4] from titles and options.
- When the body lacks numeric question markers, lines starting with a page marker such as [p1-4] start questions; number them sequentially by appearance.
- Parse the answer key independently; a line may hold several entries.
`

// Options bound the payload.
type Options struct {
	MaxPromptTokens int
}

// Payload is everything sent to a generator for one file.
type Payload struct {
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
	Tokens     int
}

type signalLine struct {
	I         int    `json:"i"`
	Text      string `json:"text"`
	Highlight bool   `json:"highlight"`
	Kind      string `json:"kind"`
	Source    string `json:"source"`
}

// Assemble packages the signal and instructions into a bounded payload.
func Assemble(sig *signal.DocumentSignal, category string, opts Options) (Payload, error) {
	if opts.MaxPromptTokens <= 0 {
		opts.MaxPromptTokens = DefaultMaxPromptTokens
	}

	var sb strings.Builder
	sb.WriteString(guidance)
	sb.WriteString("\nCategory: ")
	sb.WriteString(category)
	sb.WriteString("\n---\nDocument signal (one JSON object per line):\n")
	for _, line := range sig.Lines {
		b, err := json.Marshal(signalLine{
			I:         line.LineIndex,
			Text:      line.Text,
			Highlight: line.HasHighlight,
			Kind:      string(line.Kind),
			Source:    string(line.Source),
		})
		if err != nil {
			return Payload{}, eris.Wrap(err, "prompt: encode line")
		}
		sb.Write(b)
		sb.WriteByte('\n')
	}

	if len(sig.AnswerKey) > 0 {
		sb.WriteString("---\nAnswer key entries detected in the signal:\n")
		for _, e := range sortedKey(sig.AnswerKey) {
			fmt.Fprintf(&sb, "question %d: %s (line %d)\n", e.QuestionNumber, e.Letter, e.LineIndex)
		}
	}

	p := Payload{
		System:     SystemPrompt,
		User:       sb.String(),
		SchemaName: exam.SchemaName,
		Schema:     Schema(),
	}
	p.Tokens = EstimateTokens(p.System) + EstimateTokens(p.User)
	if p.Tokens > opts.MaxPromptTokens {
		return Payload{}, eris.Wrapf(ErrTooLarge, "prompt: %d estimated tokens, limit %d", p.Tokens, opts.MaxPromptTokens)
	}
	return p, nil
}

// Repair builds the follow-up payload after a response failed validation.
func (p Payload) Repair(previousRaw string, violations []exam.Violation) Payload {
	r := p
	r.User = RepairPrompt(p.User, previousRaw, violations)
	r.Tokens = EstimateTokens(r.System) + EstimateTokens(r.User)
	return r
}

// RepairPrompt asks the generator to fix the listed constraint violations
// without inventing content. The original request is repeated so the
// generator keeps the evidence in view.
func RepairPrompt(original, previousRaw string, violations []exam.Violation) string {
	var sb strings.Builder
	sb.WriteString("Your previous output did not pass validation. ")
	sb.WriteString("Fix the JSON to satisfy the schema without inventing new content. ")
	sb.WriteString("Return only valid JSON.\n\nViolated constraints:\n")
	sb.WriteString(exam.Describe(violations))
	sb.WriteString("\n\nPrevious output:\n")
	sb.WriteString(previousRaw)
	sb.WriteString("\n\nOriginal request:\n")
	sb.WriteString(original)
	return sb.String()
}

func sortedKey(key map[int]signal.AnswerKeyEntry) []signal.AnswerKeyEntry {
	out := make([]signal.AnswerKeyEntry, 0, len(key))
	for _, e := range key {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionNumber < out[j].QuestionNumber })
	return out
}
