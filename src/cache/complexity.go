package cache

import (
	"strings"
	"unicode"
)

// Complexity is the coarse query classification used to pick a cache
// TTL: cheap, volatile facts expire sooner than stable, complex answers.
type Complexity int

const (
	ComplexitySimple Complexity = iota
	ComplexityModerate
	ComplexityComplex
)

func (c Complexity) String() string {
	switch c {
	case ComplexitySimple:
		return "simple"
	case ComplexityComplex:
		return "complex"
	default:
		return "moderate"
	}
}

const (
	simpleCeiling = 0.35
	complexFloor  = 0.55
)

// ClassifyComplexity buckets a question by its complexity score.
func ClassifyComplexity(question string) Complexity {
	score := ScoreComplexity(question)
	switch {
	case score < simpleCeiling:
		return ComplexitySimple
	case score > complexFloor:
		return ComplexityComplex
	default:
		return ComplexityModerate
	}
}

// ScoreComplexity computes a 0..1 complexity score from length,
// vocabulary diversity, reasoning keywords and punctuation density.
func ScoreComplexity(question string) float64 {
	if strings.TrimSpace(question) == "" {
		return 0
	}

	lengthScore := float64(len(question)) / 1000.0
	if lengthScore > 1.0 {
		lengthScore = 1.0
	}

	words := strings.Fields(strings.ToLower(question))
	uniqueWords := make(map[string]bool)
	for _, word := range words {
		uniqueWords[word] = true
	}
	diversityScore := 0.0
	if len(words) > 0 {
		diversityScore = float64(len(uniqueWords)) / float64(len(words))
	}

	complexityKeywords := []string{
		"explain", "analyze", "compare", "evaluate", "why",
		"how does", "what if", "reasoning", "detailed",
	}
	keywordScore := 0.0
	questionLower := strings.ToLower(question)
	for _, keyword := range complexityKeywords {
		if strings.Contains(questionLower, keyword) {
			keywordScore += 0.15
		}
	}

	punctCount := 0
	for _, char := range question {
		if unicode.IsPunct(char) {
			punctCount++
		}
	}
	punctScore := float64(punctCount) / 100.0
	if punctScore > 0.3 {
		punctScore = 0.3
	}

	return (lengthScore * 0.3) + (diversityScore * 0.3) +
		(keywordScore * 0.3) + (punctScore * 0.1)
}
