package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_CleanInputRoundTrips(t *testing.T) {
	inputs := []string{
		"12. What is the capital of France?",
		"B) Lyon",
		"Precision × Recall",
		"It's a \"quoted\" word - with a dash.",
	}
	for _, in := range inputs {
		var w Warnings
		assert.Equal(t, in, Text(in, &w))
		assert.Empty(t, w, "no warning expected for %q", in)
	}
}

func TestText_RightSingleQuoteMojibake(t *testing.T) {
	var w Warnings
	got := Text("Reduce the modelâ€™s complexity", &w)
	assert.Equal(t, "Reduce the model's complexity", got)
	require.Len(t, w, 1)
	assert.Equal(t, EncodingWarning, w[0])
}

func TestText_LatinOneRendering(t *testing.T) {
	var w Warnings
	got := Text("Reduce the modelâ\u0080\u0099s complexity", &w)
	assert.Equal(t, "Reduce the model's complexity", got)
	assert.Equal(t, Warnings{EncodingWarning}, w)
}

func TestText_MultiplicationSign(t *testing.T) {
	var w Warnings
	assert.Equal(t, "Precision × Recall", Text("Precision Ã— Recall", &w))
	assert.True(t, w.Has(EncodingWarning))
}

func TestText_WarnsOncePerFile(t *testing.T) {
	var w Warnings
	Text("â€œQuotedâ€\u009d", &w)
	Text("Itâ€™s", &w)
	Text("Aâ€“B", &w)
	assert.Equal(t, Warnings{EncodingWarning}, w)
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{
		"Itâ€™s  a\n\ttest â€” really",
		"  spaced   out  ",
		"Â\u00a0leading nbsp",
	}
	for _, in := range inputs {
		var first Warnings
		once := Text(in, &first)

		var second Warnings
		twice := Text(once, &second)
		assert.Equal(t, once, twice)
		assert.Empty(t, second, "re-normalizing %q must not warn", once)
	}
}

func TestText_FlattensWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", Text("  a\n\nb\t\tc  ", nil))
	assert.Equal(t, "", Text(" \n\t ", nil))
}

func TestClean_Table(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"left double", "â€œhi", "\"hi"},
		{"right double truncated", "hiâ€", "hi\""},
		{"en dash", "1â€“2", "1-2"},
		{"em dash", "aâ€”b", "a-b"},
		{"ellipsis", "waitâ€¦", "wait..."},
		{"replacement as cp1252", "donï¿½t", "don't"},
		{"nbsp", "aÂ\u00a0b", "a b"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, fixed := Clean(tc.in)
			assert.True(t, fixed)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWarnings_AddDeduplicates(t *testing.T) {
	var w Warnings
	w.Add("a")
	w.Add("b")
	w.Add("a")
	w.Add("")
	assert.Equal(t, Warnings{"a", "b"}, w)

	var nilW *Warnings
	assert.NotPanics(t, func() { nilW.Add("x") })
}
