package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrompt(t *testing.T) {
	assert.Equal(t, "what does love mean?", NormalizePrompt("  What   does LOVE mean?  "))
	assert.Equal(t, "", NormalizePrompt("   "))
}

func TestExactKey_EquivalentQuestions(t *testing.T) {
	k1 := ExactKey("What does love mean in 1 Corinthians 13?")
	k2 := ExactKey("  what DOES love   mean in 1 corinthians 13?")
	k3 := ExactKey("What does hope mean in 1 Corinthians 13?")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestClassifyComplexity(t *testing.T) {
	assert.Equal(t, ComplexitySimple, ClassifyComplexity("What is 2+2?"))
	assert.Equal(t, ComplexityComplex, ClassifyComplexity(
		"Explain in detail and analyze the reasoning behind Paul's argument in Romans 9, "+
			"compare it with his earlier letters, and evaluate why his rhetoric shifted; "+
			"what if the audience had been entirely gentile?"))
}

func TestClassifyComplexity_EmptyIsSimple(t *testing.T) {
	assert.Equal(t, ComplexitySimple, ClassifyComplexity(""))
}
