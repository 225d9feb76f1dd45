package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/verseflow/verseflow/src/config"
)

// OpenAIEmbedder computes question embeddings through the OpenAI
// embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(cfg *config.EmbeddingConfig) *OpenAIEmbedder {
	model := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.AdaEmbeddingV2
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(cfg.APIKey),
		model:  model,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned from OpenAI")
	}

	return resp.Data[0].Embedding, nil
}
