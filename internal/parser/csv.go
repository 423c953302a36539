package parser

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/dgallion1/examconv/internal/normalize"
	"github.com/rotisserie/eris"
)

// CSVParser handles CSV files. Each non-empty cell becomes a table-cell
// unit in row-major order.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "parser: read csv")
	}
	decoded := normalize.Decode(raw)

	reader := csv.NewReader(strings.NewReader(decoded.Text))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "parser: parse csv")
	}

	doc := newDocument(filename)
	doc.Warnings = append(doc.Warnings, decoded.Warnings...)
	for _, row := range records {
		for _, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			doc.add(cell, false, SourceTableCell)
		}
	}
	return doc, nil
}
