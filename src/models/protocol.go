package models

// Message types exchanged with a client connection. Every wire message
// is a JSON object keyed by "type".
const (
	MsgLLMRequest  = "llm_request"
	MsgStreamStart = "llm_stream_start"
	MsgStreamChunk = "llm_stream_chunk"
	MsgStreamEnd   = "llm_stream_end"
	MsgLLMError    = "llm_error"
	MsgIntent      = "intent_classification"
	MsgInterrupt   = "interrupt"
	MsgCancel      = "cancel"
	MsgCancelled   = "llm_cancelled"
	MsgHeartbeat   = "heartbeat"
)

// Error codes carried by llm_error messages.
const (
	CodeInvalidRequest        = "invalid_request"
	CodeProviderFailed        = "provider_failed"
	CodeAllProvidersExhausted = "all_providers_exhausted"
)

// CancelAll is the sentinel target id that cancels every in-flight
// request owned by a session.
const CancelAll = "all"

// WireMessage is the flat envelope for every message on a connection.
// Unused fields are omitted per message type.
type WireMessage struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	ParentID string `json:"parentId,omitempty"`

	// llm_request
	Prompt  string             `json:"prompt,omitempty"`
	Options *GenerationOptions `json:"options,omitempty"`

	// llm_stream_chunk / llm_stream_end
	Text             string      `json:"text,omitempty"`
	FullText         string      `json:"fullText,omitempty"`
	Provider         string      `json:"provider,omitempty"`
	ProcessingTimeMs int64       `json:"processingTimeMs,omitempty"`
	TokenUsage       *TokenUsage `json:"tokenUsage,omitempty"`
	FallbackChain    []string    `json:"fallbackChain,omitempty"`

	// llm_error
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`

	// interrupt / cancel
	TargetID string `json:"targetId,omitempty"`

	// intent_classification
	PrimaryIntent        string            `json:"primaryIntent,omitempty"`
	Intents              []IntentCandidate `json:"intents,omitempty"`
	Entities             []string          `json:"entities,omitempty"`
	RequiresMemoryAccess bool              `json:"requiresMemoryAccess,omitempty"`
	RequiresExternalData bool              `json:"requiresExternalData,omitempty"`
}
