package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/models"
)

const defaultTemperature = 0.7

// LangchainAdapter backs one configured vendor with a langchaingo
// OpenAI-compatible client. Vendor response shapes are normalized here:
// nothing past this boundary sees anything but plain text fragments.
type LangchainAdapter struct {
	name      string
	llm       llms.Model
	maxTokens int
}

func NewLangchainAdapter(cfg *config.ProviderConfig) (*LangchainAdapter, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for provider %s: %w", cfg.Name, err)
	}

	return &LangchainAdapter{
		name:      cfg.Name,
		llm:       llm,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (a *LangchainAdapter) Name() string {
	return a.name
}

// GenerateStream yields incremental fragments via onFragment and
// returns the full response text. A non-nil error from onFragment
// aborts the vendor call.
func (a *LangchainAdapter) GenerateStream(ctx context.Context, prompt string, opts models.GenerationOptions, onFragment func(text string) error) (string, error) {
	var full strings.Builder

	streamingFunc := func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		full.Write(chunk)
		return onFragment(string(chunk))
	}

	_, err := llms.GenerateFromSinglePrompt(
		ctx,
		a.llm,
		prompt,
		a.callOptions(opts, llms.WithStreamingFunc(streamingFunc))...,
	)
	if err != nil {
		return full.String(), fmt.Errorf("provider %s generation failed: %w", a.name, err)
	}

	return full.String(), nil
}

func (a *LangchainAdapter) Complete(ctx context.Context, prompt string, opts models.GenerationOptions) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, a.callOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("provider %s generation failed: %w", a.name, err)
	}
	return response, nil
}

func (a *LangchainAdapter) callOptions(opts models.GenerationOptions, extra ...llms.CallOption) []llms.CallOption {
	temperature := float64(opts.Temperature)
	if temperature == 0 {
		temperature = defaultTemperature
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.maxTokens
	}

	callOpts := []llms.CallOption{
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	}
	return append(callOpts, extra...)
}
