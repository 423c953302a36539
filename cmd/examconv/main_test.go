package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const examText = `1) Capital of France?
A) Paris
*B) Lyon
C) Nice
D) Rouen
`

const script = `- text: '{"category":"Geography","questions":[{"number":1,"title":"Capital of France?","options":["Paris","Lyon","Nice","Rouen"],"correct_index":1,"detected_answer_method":"asterisk","warnings":[],"source_refs":[0,2]}]}'
`

func setup(t *testing.T, scriptText string) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "exam.txt"), []byte(examText), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.yaml"), []byte(scriptText), 0o644))
	t.Setenv("EXAMCONV_LLM_PROVIDER", "scripted")
	t.Setenv("EXAMCONV_LLM_SCRIPT", filepath.Join(dir, "script.yaml"))
	t.Setenv("EXAMCONV_LLM_REQUESTS_PER_SECOND", "0")
	t.Setenv("EXAMCONV_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestConvert_WritesCSV(t *testing.T) {
	dir := setup(t, script)
	outPath := filepath.Join(dir, "questions.csv")

	_, stderr, err := run(t, "convert", "exam.txt", "--category", "Geo", "--format", "csv", "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "ok      exam.txt: 1 questions")

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Geo", records[1][2])
	assert.Equal(t, "Lyon", records[1][8])
}

func TestConvert_NothingExportedOnFailure(t *testing.T) {
	dir := setup(t, "- text: 'nope'\n- text: 'nope'\n- text: 'nope'\n")
	outPath := filepath.Join(dir, "questions.csv")

	_, stderr, err := run(t, "convert", "exam.txt", "--category", "", "--format", "csv", "--out", outPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files are not valid")
	assert.Contains(t, stderr, "schema_validation_failure")
	assert.NoFileExists(t, outPath)
}

func TestConvert_RepeatedNumbersAcrossFiles(t *testing.T) {
	dir := setup(t, script+script)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "retake.txt"), []byte(examText), 0o644))
	outPath := filepath.Join(dir, "questions.csv")

	_, stderr, err := run(t, "convert", "exam.txt", "retake.txt", "--category", "Geo", "--format", "csv", "--out", outPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question numbers repeat across files")
	assert.Contains(t, err.Error(), "also used by exam.txt")
	assert.Contains(t, stderr, "ok      retake.txt: 1 questions")
	assert.NoFileExists(t, outPath)
}

func TestSignal_YAML(t *testing.T) {
	setup(t, script)

	stdout, _, err := run(t, "signal", "exam.txt", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "source_filename: exam.txt")
	assert.Contains(t, stdout, "question_starts: 1")
	assert.Contains(t, stdout, "*B) Lyon")
}

func TestSignal_UnknownFormat(t *testing.T) {
	setup(t, script)
	_, _, err := run(t, "signal", "exam.txt", "--format", "toml")
	assert.Error(t, err)
}
