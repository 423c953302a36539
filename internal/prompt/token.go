package prompt

import "strings"

// EstimateTokens gives a rough token count from the word count.
// Exact tokenization is not needed to bound a payload.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 0.75 words per token for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
