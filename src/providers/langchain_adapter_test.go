package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/models"
)

func newTestAdapter(t *testing.T) *LangchainAdapter {
	t.Helper()
	adapter, err := NewLangchainAdapter(&config.ProviderConfig{
		Name:      "primary",
		Model:     "gpt-4o-mini",
		APIKey:    "test-key",
		MaxTokens: 1024,
	})
	require.NoError(t, err)
	return adapter
}

func applyCallOptions(opts []llms.CallOption) llms.CallOptions {
	var co llms.CallOptions
	for _, opt := range opts {
		opt(&co)
	}
	return co
}

func TestLangchainAdapter_Name(t *testing.T) {
	assert.Equal(t, "primary", newTestAdapter(t).Name())
}

func TestLangchainAdapter_CallOptionDefaults(t *testing.T) {
	adapter := newTestAdapter(t)

	co := applyCallOptions(adapter.callOptions(models.GenerationOptions{}))

	assert.InDelta(t, defaultTemperature, co.Temperature, 0.001)
	assert.Equal(t, 1024, co.MaxTokens)
}

func TestLangchainAdapter_CallOptionOverrides(t *testing.T) {
	adapter := newTestAdapter(t)

	co := applyCallOptions(adapter.callOptions(models.GenerationOptions{
		Temperature: 0.2,
		MaxTokens:   64,
	}))

	assert.InDelta(t, 0.2, co.Temperature, 0.001)
	assert.Equal(t, 64, co.MaxTokens)
}

func TestNewLangchainAdapter_CustomEndpoint(t *testing.T) {
	adapter, err := NewLangchainAdapter(&config.ProviderConfig{
		Name:     "local",
		Model:    "llama3",
		APIKey:   "unused",
		Endpoint: "http://localhost:11434/v1",
	})

	require.NoError(t, err)
	assert.Equal(t, "local", adapter.Name())
}
