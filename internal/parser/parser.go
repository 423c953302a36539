package parser

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// SourceKind names the structural unit a piece of text came from.
type SourceKind string

const (
	SourceParagraph SourceKind = "paragraph"
	SourceTableCell SourceKind = "table_cell"
	SourcePlainText SourceKind = "plain_text"
)

// Unit is one text-bearing element in document order.
type Unit struct {
	Text      string
	Highlight bool // true if any run inside the unit is highlighted
	Source    SourceKind
}

// Document is the ordered unit stream of one source file.
type Document struct {
	Title          string
	ContentType    string
	Units          []Unit
	Warnings       []string
	TrackedChanges bool
}

// Parser converts raw document bytes into a unit stream.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// Options tune individual parsers.
type Options struct {
	PDFFallbackPdftotext bool
}

// ErrUnsupported is returned by ForFile for unknown extensions.
var ErrUnsupported = eris.New("unsupported file extension")

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, eris.Wrapf(ErrUnsupported, "parser: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// ContentTypeFor maps a filename to the content type recorded on its signal.
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return "text/plain"
	case ".md", ".markdown":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	case ".html", ".htm":
		return "text/html"
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}

func titleFrom(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func newDocument(filename string) *Document {
	return &Document{
		Title:       titleFrom(filename),
		ContentType: ContentTypeFor(filename),
	}
}

func (d *Document) add(text string, highlight bool, source SourceKind) {
	d.Units = append(d.Units, Unit{Text: text, Highlight: highlight, Source: source})
}
