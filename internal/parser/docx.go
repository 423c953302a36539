package parser

import (
	"archive/zip"
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/rotisserie/eris"
)

// TrackedChangesWarning is attached when revision marks carry visible text.
const TrackedChangesWarning = "Document contains tracked changes; accept or reject them before converting"

// DOCXParser handles .docx files. Body paragraphs and table cells are
// flattened into one stream in order of appearance.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "parser: read docx")
	}

	d, err := docx.Parse(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, eris.Wrap(err, "parser: parse docx")
	}

	doc := newDocument(filename)
	for _, item := range d.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text, hl := docxParagraph(it)
			doc.add(text, hl, SourceParagraph)
		case *docx.Table:
			for _, row := range it.TableRows {
				for _, cell := range row.TableCells {
					for _, para := range cell.Paragraphs {
						text, hl := docxParagraph(para)
						doc.add(text, hl, SourceTableCell)
					}
				}
			}
		}
	}

	tracked, err := hasTrackedChanges(raw)
	if err != nil {
		return nil, err
	}
	if tracked {
		doc.TrackedChanges = true
		doc.Warnings = append(doc.Warnings, TrackedChangesWarning)
	}
	return doc, nil
}

// docxParagraph returns the paragraph text and whether any run with
// visible text is highlighted.
func docxParagraph(para *docx.Paragraph) (string, bool) {
	var buf strings.Builder
	highlight := false
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			if docxRun(&buf, c) {
				highlight = true
			}
		case *docx.Hyperlink:
			if docxRun(&buf, &c.Run) {
				highlight = true
			}
		}
	}
	return buf.String(), highlight
}

func docxRun(buf *strings.Builder, run *docx.Run) bool {
	var text strings.Builder
	for _, rc := range run.Children {
		switch t := rc.(type) {
		case *docx.Text:
			text.WriteString(t.Text)
		case *docx.Tab:
			text.WriteByte('\t')
		}
	}
	buf.WriteString(text.String())
	if strings.TrimSpace(text.String()) == "" {
		return false
	}
	return runHighlighted(run)
}

func runHighlighted(run *docx.Run) bool {
	if run.RunProperties == nil || run.RunProperties.Highlight == nil {
		return false
	}
	val := run.RunProperties.Highlight.Val
	return val != "" && !strings.EqualFold(val, "none")
}

var (
	revisionOpen = regexp.MustCompile(`<w:(ins|del|moveFrom|moveTo)\b[^>]*?(/?)>`)
	visibleText  = regexp.MustCompile(`<w:(?:t|delText)\b[^>]*>\s*[^<\s]`)
)

// hasTrackedChanges scans word/document.xml for revision elements that
// contain visible text. go-docx does not expose revision marks.
func hasTrackedChanges(raw []byte) (bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return false, eris.Wrap(err, "parser: open docx archive")
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return false, eris.Wrap(err, "parser: open document.xml")
		}
		xml, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return false, eris.Wrap(err, "parser: read document.xml")
		}
		return revisionsWithText(xml), nil
	}
	return false, nil
}

func revisionsWithText(xml []byte) bool {
	for _, m := range revisionOpen.FindAllSubmatchIndex(xml, -1) {
		if m[5] > m[4] { // self-closing marker, e.g. a paragraph-mark revision
			continue
		}
		name := string(xml[m[2]:m[3]])
		body := xml[m[1]:]
		if end := bytes.Index(body, []byte("</w:"+name+">")); end >= 0 {
			body = body[:end]
		}
		if visibleText.Match(body) {
			return true
		}
	}
	return false
}
