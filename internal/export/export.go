// Package export renders validated questions as CSV or XLSX import files.
package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/dgallion1/examconv/internal/exam"
	"github.com/dgallion1/examconv/internal/normalize"
)

// Headers are the import columns, in order.
var Headers = []string{
	"ID",
	"Title",
	"Category",
	"Type",
	"Post Content",
	"Status",
	"Menu Order",
	"Options",
	"Answer",
}

const (
	questionType   = "single-choice"
	questionStatus = "publish"
	sheetName      = "Questions"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv or xlsx in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", eris.Errorf("export: unknown format %q", s)
}

// ContentType is the MIME type of a format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ErrNotValid is returned when the source is not fully validated.
var ErrNotValid = eris.New("export: questions are not all valid")

// Source is anything that can gate and supply questions for export.
type Source interface {
	CanExport() bool
	Questions() []exam.Question
}

// Write exports src in format f. Nothing is written unless src can export.
func Write(w io.Writer, src Source, category string, f Format) error {
	if !src.CanExport() {
		return ErrNotValid
	}
	questions := src.Questions()
	switch f {
	case FormatCSV:
		return WriteCSV(w, questions, category)
	case FormatXLSX:
		return WriteXLSX(w, questions, category)
	}
	return eris.Errorf("export: unknown format %q", f)
}

// Rows builds the data rows: questions sorted by number, menu order 1..N,
// options joined with "|", answer is the correct option's text.
func Rows(questions []exam.Question, category string) [][]string {
	sorted := append([]exam.Question(nil), questions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	category = normalize.Text(category, nil)
	rows := make([][]string, 0, len(sorted))
	for i, q := range sorted {
		options := make([]string, len(q.Options))
		for k, opt := range q.Options {
			options[k] = normalize.Text(opt, nil)
		}
		answer := ""
		if q.CorrectIndex >= 0 && q.CorrectIndex < len(options) {
			answer = options[q.CorrectIndex]
		}
		title := normalize.Text(q.Title, nil)
		rows = append(rows, []string{
			"",
			title,
			category,
			questionType,
			title,
			questionStatus,
			strconv.Itoa(i + 1),
			strings.Join(options, "|"),
			answer,
		})
	}
	return rows
}

// WriteCSV writes a header row plus one row per question.
func WriteCSV(w io.Writer, questions []exam.Question, category string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	if err := cw.WriteAll(Rows(questions, category)); err != nil {
		return eris.Wrap(err, "export: write csv rows")
	}
	return nil
}

// WriteXLSX writes the same table as a single-sheet workbook.
func WriteXLSX(w io.Writer, questions []exam.Question, category string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Headers {
		header.AddCell().SetString(h)
	}
	for i, data := range Rows(questions, category) {
		row := sheet.AddRow()
		for col, value := range data {
			cell := row.AddCell()
			if Headers[col] == "Menu Order" {
				cell.SetInt(i + 1)
				continue
			}
			cell.SetString(value)
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}
