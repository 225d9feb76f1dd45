package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verseflow/verseflow/src/utils"
)

const contextKeyPrefix = "conversation:"

type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationContext holds the bounded history for one connection.
// It is owned by the connection's streaming session; nothing else
// mutates it.
type ConversationContext struct {
	ConnectionID    string    `json:"connection_id"`
	UserID          string    `json:"user_id,omitempty"`
	History         []Turn    `json:"history"`
	TotalTokens     int       `json:"total_tokens"`
	LastInteraction time.Time `json:"last_interaction"`
}

// ContextStore persists conversation contexts in Redis with an idle
// TTL. History is trimmed to the most recent window on every append.
type ContextStore struct {
	client *redis.Client
	window int
	ttl    time.Duration
}

func NewContextStore(client *redis.Client, window int, ttl time.Duration) *ContextStore {
	return &ContextStore{
		client: client,
		window: window,
		ttl:    ttl,
	}
}

// Get returns the context for a connection, creating an empty one if
// none exists.
func (s *ContextStore) Get(ctx context.Context, connectionID string) (*ConversationContext, error) {
	data, err := s.client.Get(ctx, contextKeyPrefix+connectionID).Result()
	if err == redis.Nil {
		return &ConversationContext{
			ConnectionID:    connectionID,
			History:         []Turn{},
			LastInteraction: time.Now(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation context: %w", err)
	}

	var cc ConversationContext
	if err := json.Unmarshal([]byte(data), &cc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation context: %w", err)
	}
	return &cc, nil
}

func (s *ContextStore) Save(ctx context.Context, cc *ConversationContext) error {
	data, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation context: %w", err)
	}
	if err := s.client.Set(ctx, contextKeyPrefix+cc.ConnectionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save conversation context: %w", err)
	}
	return nil
}

// AppendExchange appends the user turn and assistant turn for a
// completed request, then trims to the most recent window.
func (s *ContextStore) AppendExchange(ctx context.Context, connectionID, prompt, answer string) error {
	cc, err := s.Get(ctx, connectionID)
	if err != nil {
		return err
	}

	now := time.Now()
	cc.History = append(cc.History,
		Turn{Role: "user", Content: prompt, Timestamp: now},
		Turn{Role: "assistant", Content: answer, Timestamp: now},
	)
	cc.LastInteraction = now
	cc.TotalTokens += utils.EstimateTokenCount(prompt) + utils.EstimateTokenCount(answer)

	if len(cc.History) > s.window {
		cc.History = cc.History[len(cc.History)-s.window:]
	}

	return s.Save(ctx, cc)
}

func (s *ContextStore) Delete(ctx context.Context, connectionID string) error {
	if err := s.client.Del(ctx, contextKeyPrefix+connectionID).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation context: %w", err)
	}
	return nil
}

// BuildPromptContext renders the history as the context block placed
// ahead of the user's question.
func (s *ContextStore) BuildPromptContext(cc *ConversationContext) string {
	if cc == nil || len(cc.History) == 0 {
		return ""
	}

	block := "Previous conversation:\n"
	for _, turn := range cc.History {
		block += fmt.Sprintf("%s: %s\n", turn.Role, turn.Content)
	}
	return block
}
