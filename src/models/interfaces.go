package models

import (
	"context"
	"time"
)

// ProviderAdapter converts a normalized prompt into one vendor call.
// GenerateStream invokes onFragment for each incremental piece of text
// and returns the full response. Complete is the non-streaming form
// used for auxiliary calls such as intent classification.
type ProviderAdapter interface {
	Name() string
	GenerateStream(ctx context.Context, prompt string, opts GenerationOptions, onFragment func(text string) error) (string, error)
	Complete(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
}

// Generator turns one logical request into a sequence of provider
// attempts. Implemented by the fallback router.
type Generator interface {
	Generate(ctx context.Context, req *GenerationRequest, onFragment func(GenerationFragment) error) (*GenerationResult, error)
}

// CacheStore defines exact-match cache operations. Get returns
// (nil, nil) on a miss.
type CacheStore interface {
	Get(ctx context.Context, key string) (*CachedAnswer, error)
	Set(ctx context.Context, key string, answer *CachedAnswer, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// VectorMatch is one nearest-neighbor hit from the vector index.
type VectorMatch struct {
	ID      string
	Score   float32
	Payload map[string]string
}

// VectorIndex abstracts nearest-neighbor search over embeddings.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error
	Query(ctx context.Context, vector []float32, topK int, minScore float32) ([]VectorMatch, error)
	Close() error
}

// Embedder computes an embedding vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SemanticCacheStore is the caching contract seen by sessions.
// Lookup returns nil on a miss; backend failures also surface as a
// miss, never as an error visible to the request path.
type SemanticCacheStore interface {
	Lookup(ctx context.Context, question string) *SemanticLookup
	Store(ctx context.Context, question, answer, provider string)
	Close() error
}

// IntentClassifier labels a question with one or more categories.
// Classify never fails: on provider or parse errors it degrades to
// deterministic rules.
type IntentClassifier interface {
	Classify(ctx context.Context, requestID, question string) *IntentResult
}
