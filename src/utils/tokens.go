package utils

import (
	"strings"

	"github.com/verseflow/verseflow/src/models"
)

// EstimateTokenCount estimates token count from text (rough approximation)
// More accurate: ~1 token per 4 characters for English
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)

	charCount := len(text)
	tokenCount := charCount / 4

	// Add some buffer for special tokens
	if tokenCount < 10 {
		tokenCount = 10
	}

	return tokenCount
}

// EstimateUsage builds a TokenUsage from a prompt/response pair when
// the provider did not report usage itself.
func EstimateUsage(prompt, response string) models.TokenUsage {
	in := EstimateTokenCount(prompt)
	out := EstimateTokenCount(response)
	return models.TokenUsage{
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
	}
}
