package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/verseflow/verseflow/src/models"
)

// MockProviderAdapter implements models.ProviderAdapter
type MockProviderAdapter struct {
	mock.Mock
	ProviderName string
}

func (m *MockProviderAdapter) Name() string {
	return m.ProviderName
}

func (m *MockProviderAdapter) GenerateStream(ctx context.Context, prompt string, opts models.GenerationOptions, onFragment func(string) error) (string, error) {
	args := m.Called(ctx, prompt, opts, onFragment)
	return args.String(0), args.Error(1)
}

func (m *MockProviderAdapter) Complete(ctx context.Context, prompt string, opts models.GenerationOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

// MockCacheStore implements models.CacheStore
type MockCacheStore struct {
	mock.Mock
}

func (m *MockCacheStore) Get(ctx context.Context, key string) (*models.CachedAnswer, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CachedAnswer), args.Error(1)
}

func (m *MockCacheStore) Set(ctx context.Context, key string, answer *models.CachedAnswer, ttl time.Duration) error {
	args := m.Called(ctx, key, answer, ttl)
	return args.Error(0)
}

func (m *MockCacheStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockVectorIndex implements models.VectorIndex
type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	args := m.Called(ctx, id, vector, payload)
	return args.Error(0)
}

func (m *MockVectorIndex) Query(ctx context.Context, vector []float32, topK int, minScore float32) ([]models.VectorMatch, error) {
	args := m.Called(ctx, vector, topK, minScore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VectorMatch), args.Error(1)
}

func (m *MockVectorIndex) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEmbedder implements models.Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockSemanticCache implements models.SemanticCacheStore
type MockSemanticCache struct {
	mock.Mock
}

func (m *MockSemanticCache) Lookup(ctx context.Context, question string) *models.SemanticLookup {
	args := m.Called(ctx, question)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.SemanticLookup)
}

func (m *MockSemanticCache) Store(ctx context.Context, question, answer, provider string) {
	m.Called(ctx, question, answer, provider)
}

func (m *MockSemanticCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockClassifier implements models.IntentClassifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, requestID, question string) *models.IntentResult {
	args := m.Called(ctx, requestID, question)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.IntentResult)
}
