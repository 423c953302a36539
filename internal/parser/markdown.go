package parser

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markPattern matches ==highlighted== spans.
var markPattern = regexp.MustCompile(`==([^=\n]+)==`)

// MarkdownParser handles Markdown files using goldmark. Every source line of a
// leaf block becomes one unit, with ordered-list markers kept in front.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "parser: read markdown")
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	doc := newDocument(filename)
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*ast.HTMLBlock); ok {
			return ast.WalkSkipChildren, nil
		}
		if n.Type() != ast.TypeBlock || n.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			line := string(seg.Value(src))
			if i == 0 {
				line = listPrefix(n, src, seg.Start) + line
			}
			line, hl := stripMarks(line)
			doc.add(strings.TrimRight(line, "\r\n"), hl, SourceParagraph)
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "parser: walk markdown")
	}
	return doc, nil
}

// listPrefix recovers the marker of an ordered list item ("12." or "3)")
// from the source, since goldmark renumbers items sequentially.
func listPrefix(n ast.Node, src []byte, start int) string {
	item, ok := n.Parent().(*ast.ListItem)
	if !ok || item.FirstChild() != n {
		return ""
	}
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return ""
	}
	lineStart := bytes.LastIndexByte(src[:start], '\n') + 1
	marker := strings.TrimSpace(string(src[lineStart:start]))
	if marker == "" {
		return ""
	}
	return marker + " "
}

func stripMarks(line string) (string, bool) {
	if !markPattern.MatchString(line) {
		return line, false
	}
	return markPattern.ReplaceAllString(line, "$1"), true
}
