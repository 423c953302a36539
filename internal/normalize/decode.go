package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DecodeWarning is attached when even the best candidate kept too many
// replacement characters.
const DecodeWarning = "Text decoding left replacement characters"

// maxReplacementRatio is the share of U+FFFD above which decoding is reported.
const maxReplacementRatio = 0.01

type candidate struct {
	name string
	enc  encoding.Encoding
}

// candidates are tried in priority order; ties keep the earlier one.
var candidates = []candidate{
	{name: "utf-8-sig", enc: unicode.UTF8BOM},
	{name: "utf-8", enc: unicode.UTF8},
	{name: "windows-1252", enc: charmap.Windows1252},
	{name: "iso-8859-1", enc: charmap.ISO8859_1},
}

// Decoded is the outcome of best-effort byte decoding.
type Decoded struct {
	Text         string
	Encoding     string
	Replacements int
	Warnings     Warnings
}

// Decode picks the candidate decoding with the fewest replacement characters.
// It never fails; the worst case keeps replacement characters and a warning.
func Decode(raw []byte) Decoded {
	var best Decoded
	found := false
	for _, c := range candidates {
		text, ok := decodeWith(c.enc, raw)
		if !ok {
			continue
		}
		n := strings.Count(text, "�")
		if !found || n < best.Replacements {
			best = Decoded{Text: text, Encoding: c.name, Replacements: n}
			found = true
		}
	}
	if !found {
		// Every transformer errored; keep the bytes as they are.
		text := strings.ToValidUTF8(string(raw), "�")
		best = Decoded{Text: text, Encoding: "raw", Replacements: strings.Count(text, "�")}
	}

	if best.Encoding != "utf-8-sig" && best.Encoding != "utf-8" {
		best.Warnings.Add(fmt.Sprintf("Decoded text as %s", best.Encoding))
	}
	if ratio(best.Replacements, best.Text) > maxReplacementRatio {
		best.Warnings.Add(DecodeWarning)
	}
	return best
}

func decodeWith(enc encoding.Encoding, raw []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(out), true
}

func ratio(n int, text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
