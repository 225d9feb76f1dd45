package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/models"
)

const classificationPromptTemplate = `You classify user messages for a question-answering assistant.
Label the message below against exactly this closed set of intents:
  question         - an informational question
  store_memory     - the user asks to remember or save something
  retrieve_memory  - the user asks for something previously stored
  command          - an imperative instruction to perform an action
  greeting         - a salutation with no other content

Respond with JSON only, no prose, in this shape:
{"intents":[{"intent":"...","confidence":0.0,"reasoning":"..."}],"entities":["..."],"requiresMemoryAccess":false,"requiresExternalData":false}

Message: %q`

// modelVerdict is the structured shape the provider must return.
type modelVerdict struct {
	Intents []struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	} `json:"intents"`
	Entities             []string `json:"entities"`
	RequiresMemoryAccess bool     `json:"requiresMemoryAccess"`
	RequiresExternalData bool     `json:"requiresExternalData"`
}

var validIntents = map[string]bool{
	models.IntentQuestion:       true,
	models.IntentStoreMemory:    true,
	models.IntentRetrieveMemory: true,
	models.IntentCommand:        true,
	models.IntentGreeting:       true,
}

// Classifier labels questions with intent categories. The model path
// is best effort: any provider or parse failure falls back to the
// deterministic rules, so Classify always returns a result.
type Classifier struct {
	provider    models.ProviderAdapter
	temperature float32
	maxTokens   int
}

// NewClassifier builds a classifier backed by provider. A nil provider
// yields a heuristics-only classifier.
func NewClassifier(provider models.ProviderAdapter, cfg *config.IntentConfig) *Classifier {
	return &Classifier{
		provider:    provider,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *Classifier) Classify(ctx context.Context, requestID, question string) *models.IntentResult {
	if c.provider != nil {
		result, err := c.classifyModel(ctx, requestID, question)
		if err == nil {
			return result
		}
		log.Warn("model classification failed, using heuristics",
			"request", requestID, "err", err)
	}
	return classifyHeuristic(requestID, question)
}

// classifyModel asks the provider for structured labels. Unparseable
// output fails this call; it is not retried against another provider.
func (c *Classifier) classifyModel(ctx context.Context, requestID, question string) (*models.IntentResult, error) {
	prompt := fmt.Sprintf(classificationPromptTemplate, question)

	raw, err := c.provider.Complete(ctx, prompt, models.GenerationOptions{
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.IntentCandidate, 0, len(verdict.Intents))
	for _, in := range verdict.Intents {
		if !validIntents[in.Intent] {
			return nil, fmt.Errorf("%w: unknown intent %q", models.ErrClassificationUnparseable, in.Intent)
		}
		candidates = append(candidates, models.IntentCandidate{
			Intent:     in.Intent,
			Confidence: in.Confidence,
			Reasoning:  in.Reasoning,
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no intents returned", models.ErrClassificationUnparseable)
	}

	result := buildResult(requestID, candidates, verdict.Entities, false)
	result.RequiresMemoryAccess = result.RequiresMemoryAccess || verdict.RequiresMemoryAccess
	result.RequiresExternalData = result.RequiresExternalData || verdict.RequiresExternalData
	return result, nil
}

// parseVerdict tolerates markdown code fences around the JSON body,
// a habit some models refuse to drop.
func parseVerdict(raw string) (*modelVerdict, error) {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}

	var verdict modelVerdict
	if err := json.Unmarshal([]byte(body), &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrClassificationUnparseable, err)
	}
	return &verdict, nil
}
