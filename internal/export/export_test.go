package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/dgallion1/examconv/internal/exam"
)

func sampleQuestions() []exam.Question {
	return []exam.Question{
		{Number: 2, Title: "Largest planet?", Options: [4]string{"Mars", "Venus", "Earth", "Jupiter"}, CorrectIndex: 3, Method: exam.MethodHighlight},
		{Number: 1, Title: "Capital of France?", Options: [4]string{"Paris", "Lyon", "Nice", "Rouen"}, CorrectIndex: 0, Method: exam.MethodAnswerKey},
	}
}

type fakeSource struct {
	ok        bool
	questions []exam.Question
}

func (f fakeSource) CanExport() bool            { return f.ok }
func (f fakeSource) Questions() []exam.Question { return f.questions }

func TestRows_SortedWithMenuOrder(t *testing.T) {
	rows := Rows(sampleQuestions(), "  Science ")
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"", "Capital of France?", "Science", "single-choice", "Capital of France?", "publish", "1", "Paris|Lyon|Nice|Rouen", "Paris",
	}, rows[0])
	assert.Equal(t, "2", rows[1][6])
	assert.Equal(t, "Jupiter", rows[1][8])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleQuestions(), "Science"))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Headers, records[0])
	assert.Equal(t, "Capital of France?", records[1][1])
	assert.Equal(t, "Mars|Venus|Earth|Jupiter", records[2][7])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleQuestions(), "Science"))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "ID", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Capital of France?", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "1", sheet.Rows[1].Cells[6].String())
	assert.Equal(t, "Jupiter", sheet.Rows[2].Cells[8].String())
}

func TestWrite_GatedOnValidity(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, fakeSource{ok: false, questions: sampleQuestions()}, "Science", FormatCSV)
	assert.ErrorIs(t, err, ErrNotValid)
	assert.Zero(t, buf.Len(), "nothing written for an invalid source")

	require.NoError(t, Write(&buf, fakeSource{ok: true, questions: sampleQuestions()}, "Science", FormatCSV))
	assert.Contains(t, buf.String(), "Paris|Lyon|Nice|Rouen")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	assert.Contains(t, f.ContentType(), "spreadsheetml")

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", f.ContentType())

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}
