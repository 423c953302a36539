package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/examconv/internal/normalize"
	"github.com/rotisserie/eris"
)

// TextParser handles plain text files of unknown encoding.
// Every line becomes one unit; blank lines are left for the extractor to skip.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "parser: read text")
	}

	decoded := normalize.Decode(raw)
	doc := newDocument(filename)
	doc.Warnings = append(doc.Warnings, decoded.Warnings...)

	for _, line := range splitLines(decoded.Text) {
		doc.add(line, false, SourcePlainText)
	}
	return doc, nil
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u2028", "\n", "\u2029", "\n", "\u0085", "\n")

// splitLines breaks text on \n, \r\n, bare \r and the Unicode line and
// paragraph separators. Lines have no length limit. A trailing line break
// does not produce an extra empty line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = lineBreaks.Replace(text)
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
