package normalize

import (
	"slices"
	"strings"
)

// EncodingWarning is attached once per file when any mojibake rewrite happened.
const EncodingWarning = "Normalized text encoding artifacts"

// Warnings is an insertion-ordered set of warning messages.
type Warnings []string

// Add appends msg unless it is already present. Safe on a nil receiver.
func (w *Warnings) Add(msg string) {
	if w == nil || msg == "" {
		return
	}
	if slices.Contains(*w, msg) {
		return
	}
	*w = append(*w, msg)
}

// Merge adds every message of other in order.
func (w *Warnings) Merge(other []string) {
	for _, msg := range other {
		w.Add(msg)
	}
}

// Has reports whether msg was recorded.
func (w Warnings) Has(msg string) bool {
	return slices.Contains(w, msg)
}

// mojibake lists UTF-8 punctuation that was decoded as windows-1252 or latin-1.
// Longer sequences come first: the replacer compares in argument order.
var mojibake = []struct {
	bad  string
	good string
}{
	// windows-1252 renderings
	{"â€™", "'"},
	{"â€˜", "'"},
	{"â€œ", "\""},
	{"â€\u009d", "\""},
	{"â€“", "-"},
	{"â€”", "-"},
	{"â€¦", "..."},
	// latin-1 renderings
	{"â\u0080\u0099", "'"},
	{"â\u0080\u0098", "'"},
	{"â\u0080\u009c", "\""},
	{"â\u0080\u009d", "\""},
	{"â\u0080\u0093", "-"},
	{"â\u0080\u0094", "-"},
	{"â\u0080\u00a6", "..."},
	// right double quote with its last byte dropped
	{"â€", "\""},
	{"Ã—", "×"},
	{"Ã\u0097", "×"},
	{"Â\u00a0", " "},
	// U+FFFD read back as windows-1252
	{"ï¿½", "'"},
}

var mojibakeReplacer = func() *strings.Replacer {
	pairs := make([]string, 0, len(mojibake)*2)
	for _, m := range mojibake {
		pairs = append(pairs, m.bad, m.good)
	}
	return strings.NewReplacer(pairs...)
}()

// Clean rewrites known mojibake sequences and reports whether anything changed.
func Clean(s string) (string, bool) {
	cleaned := mojibakeReplacer.Replace(s)
	return cleaned, cleaned != s
}

// Flatten collapses all whitespace runs, newlines included, to single spaces.
func Flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Text cleans mojibake and flattens whitespace. When a rewrite happened the
// encoding warning is added to warnings (nil is allowed).
func Text(s string, warnings *Warnings) string {
	cleaned, fixed := Clean(s)
	if fixed {
		warnings.Add(EncodingWarning)
	}
	return Flatten(cleaned)
}
