package models

import "time"

type GenerationOptions struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

// GenerationRequest is created when a client submits a question.
// It is immutable after construction and owned by the session that
// created it until a terminal outcome is reached.
type GenerationRequest struct {
	ID                string            `json:"id"`
	Prompt            string            `json:"prompt"`
	PreferredProvider string            `json:"preferred_provider,omitempty"`
	Options           GenerationOptions `json:"options,omitempty"`
	ConnectionID      string            `json:"connection_id"`
}

// GenerationFragment is one incremental piece of generated text.
// Fragments are ephemeral and never persisted.
type GenerationFragment struct {
	RequestID  string `json:"request_id"`
	Text       string `json:"text"`
	ProviderID string `json:"provider_id"`
	IsFinal    bool   `json:"is_final,omitempty"`
}

type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// GenerationResult is the terminal artifact of a request, written once.
type GenerationResult struct {
	RequestID     string        `json:"request_id"`
	FullText      string        `json:"full_text"`
	ProviderID    string        `json:"provider_id"`
	Elapsed       time.Duration `json:"elapsed"`
	TokenUsage    TokenUsage    `json:"token_usage"`
	FallbackChain []string      `json:"fallback_chain"`
	CacheHit      bool          `json:"cache_hit,omitempty"`
	Similarity    float64       `json:"similarity,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Intent labels form a fixed, closed set. Classifier output is
// validated against this set before it is trusted.
const (
	IntentQuestion       = "question"
	IntentStoreMemory    = "store_memory"
	IntentRetrieveMemory = "retrieve_memory"
	IntentCommand        = "command"
	IntentGreeting       = "greeting"
)

type IntentCandidate struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// IntentResult is produced asynchronously and correlated to a
// GenerationRequest by id. It may arrive after the GenerationResult.
type IntentResult struct {
	RequestID            string            `json:"request_id"`
	PrimaryIntent        string            `json:"primary_intent"`
	Candidates           []IntentCandidate `json:"candidates"`
	Entities             []string          `json:"entities"`
	RequiresMemoryAccess bool              `json:"requires_memory_access"`
	RequiresExternalData bool              `json:"requires_external_data"`
	Heuristic            bool              `json:"heuristic,omitempty"`
}

// CachedAnswer is the value stored under an exact-match cache key.
type CachedAnswer struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Provider string    `json:"provider"`
	CachedAt time.Time `json:"cached_at"`
}

// SemanticLookup is the outcome of a cache lookup. Exact hits carry
// similarity 1.0; semantic hits carry the vector match score.
type SemanticLookup struct {
	Answer     string  `json:"answer"`
	Provider   string  `json:"provider"`
	Similarity float64 `json:"similarity"`
	Exact      bool    `json:"exact"`
}
