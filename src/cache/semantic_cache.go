package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/models"
)

const semanticTopK = 3

// Vector payload fields.
const (
	payloadQuestion  = "question"
	payloadAnswer    = "answer"
	payloadProvider  = "provider"
	payloadExpiresAt = "expires_at"
)

// SemanticCache answers lookups from the exact-match store first, then
// by embedding-space similarity against the vector index. Backend
// failures never propagate to the request path: every error path
// degrades to a miss with a log record.
type SemanticCache struct {
	exact     models.CacheStore
	index     models.VectorIndex
	embedder  models.Embedder
	threshold float64
	ttls      map[Complexity]time.Duration
}

func NewSemanticCache(exact models.CacheStore, index models.VectorIndex, embedder models.Embedder, cfg *config.SemanticCacheConfig) *SemanticCache {
	return &SemanticCache{
		exact:     exact,
		index:     index,
		embedder:  embedder,
		threshold: cfg.SimilarityThreshold,
		ttls: map[Complexity]time.Duration{
			ComplexitySimple:   cfg.SimpleTTL,
			ComplexityModerate: cfg.ModerateTTL,
			ComplexityComplex:  cfg.ComplexTTL,
		},
	}
}

// Lookup returns nil on a miss. Exact hits come back with similarity
// 1.0; semantic hits with the match score.
func (c *SemanticCache) Lookup(ctx context.Context, question string) *models.SemanticLookup {
	hit, err := c.exact.Get(ctx, ExactKey(question))
	if err != nil {
		log.Warn("exact cache lookup failed, treating as miss", "err", err)
	} else if hit != nil {
		return &models.SemanticLookup{
			Answer:     hit.Answer,
			Provider:   hit.Provider,
			Similarity: 1.0,
			Exact:      true,
		}
	}

	vector, err := c.embedder.Embed(ctx, NormalizePrompt(question))
	if err != nil {
		log.Warn("embedding generation failed, treating as miss", "err", err)
		return nil
	}

	matches, err := c.index.Query(ctx, vector, semanticTopK, float32(c.threshold))
	if err != nil {
		log.Warn("vector index query failed, treating as miss", "err", err)
		return nil
	}

	now := time.Now().Unix()
	for _, m := range matches {
		if expired(m.Payload[payloadExpiresAt], now) {
			continue
		}
		answer := m.Payload[payloadAnswer]
		if answer == "" {
			continue
		}
		return &models.SemanticLookup{
			Answer:     answer,
			Provider:   m.Payload[payloadProvider],
			Similarity: float64(m.Score),
			Exact:      false,
		}
	}
	return nil
}

// Store writes the exact-match entry and upserts the question/answer
// pair into the vector index. TTL follows the query's complexity
// classification.
func (c *SemanticCache) Store(ctx context.Context, question, answer, provider string) {
	ttl := c.ttls[ClassifyComplexity(question)]

	entry := &models.CachedAnswer{
		Question: question,
		Answer:   answer,
		Provider: provider,
		CachedAt: time.Now(),
	}
	if err := c.exact.Set(ctx, ExactKey(question), entry, ttl); err != nil {
		log.Warn("exact cache write failed", "err", err)
	}

	vector, err := c.embedder.Embed(ctx, NormalizePrompt(question))
	if err != nil {
		log.Warn("embedding generation failed, skipping vector upsert", "err", err)
		return
	}

	payload := map[string]any{
		payloadQuestion:  question,
		payloadAnswer:    answer,
		payloadProvider:  provider,
		payloadExpiresAt: strconv.FormatInt(time.Now().Add(ttl).Unix(), 10),
	}
	if err := c.index.Upsert(ctx, uuid.New().String(), vector, payload); err != nil {
		log.Warn("vector index upsert failed", "err", err)
	}
}

// Close releases the vector index connection. The exact store is owned
// by the caller and closed there.
func (c *SemanticCache) Close() error {
	return c.index.Close()
}

// expired reports whether a stored expiry (unix seconds, as written by
// Store) is in the past. Entries without an expiry never match.
func expired(expiresAt string, now int64) bool {
	if expiresAt == "" {
		return true
	}
	ts, err := strconv.ParseInt(expiresAt, 10, 64)
	if err != nil {
		return true
	}
	return ts <= now
}
