package intent

import (
	"strings"

	"github.com/verseflow/verseflow/src/models"
)

// heuristicConfidence values are fixed per rule; the primary intent is
// the highest-confidence candidate, ties broken by declaration order.
type rule struct {
	intent     string
	confidence float64
	reasoning  string
	matches    func(q string) bool
}

var greetingCues = []string{
	"hi", "hello", "hey", "good morning", "good afternoon",
	"good evening", "greetings", "howdy",
}

var storageCues = []string{
	"remember", "note that", "save this", "store this", "keep in mind",
	"don't forget", "write down",
}

var retrievalCues = []string{
	"what did i", "do you remember", "recall", "what was my",
	"remind me", "what do you know about me",
}

var questionStarters = []string{
	"what", "who", "where", "when", "why", "how", "which",
	"is", "are", "does", "do", "can", "could", "should", "would",
}

var imperativeVerbs = []string{
	"show", "list", "open", "find", "give", "tell", "explain",
	"summarize", "translate", "read", "compare", "search",
}

// rules are evaluated in order; all matching rules contribute
// candidates.
var rules = []rule{
	{
		intent:     models.IntentGreeting,
		confidence: 0.9,
		reasoning:  "greeting cue",
		matches: func(q string) bool {
			return hasAnyPrefix(q, greetingCues)
		},
	},
	{
		intent:     models.IntentStoreMemory,
		confidence: 0.85,
		reasoning:  "storage verb",
		matches: func(q string) bool {
			return containsAny(q, storageCues)
		},
	},
	{
		intent:     models.IntentRetrieveMemory,
		confidence: 0.85,
		reasoning:  "retrieval cue",
		matches: func(q string) bool {
			return containsAny(q, retrievalCues)
		},
	},
	{
		intent:     models.IntentQuestion,
		confidence: 0.8,
		reasoning:  "question marker",
		matches: func(q string) bool {
			return strings.Contains(q, "?") || hasAnyPrefix(q, questionStarters)
		},
	},
	{
		intent:     models.IntentCommand,
		confidence: 0.7,
		reasoning:  "imperative verb",
		matches: func(q string) bool {
			return hasAnyPrefix(q, imperativeVerbs)
		},
	},
}

// classifyHeuristic applies the ordered pattern rules. If no rule
// matches it defaults to a single low-confidence question label.
func classifyHeuristic(requestID, question string) *models.IntentResult {
	q := strings.ToLower(strings.TrimSpace(question))

	var candidates []models.IntentCandidate
	for _, r := range rules {
		if r.matches(q) {
			candidates = append(candidates, models.IntentCandidate{
				Intent:     r.intent,
				Confidence: r.confidence,
				Reasoning:  r.reasoning,
			})
		}
	}

	if len(candidates) == 0 {
		candidates = []models.IntentCandidate{{
			Intent:     models.IntentQuestion,
			Confidence: 0.3,
			Reasoning:  "default",
		}}
	}

	return buildResult(requestID, candidates, nil, true)
}

// buildResult picks the primary intent (highest confidence, first
// declared wins ties) and derives the access flags.
func buildResult(requestID string, candidates []models.IntentCandidate, entities []string, heuristic bool) *models.IntentResult {
	primary := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > primary.Confidence {
			primary = c
		}
	}

	if entities == nil {
		entities = []string{}
	}

	return &models.IntentResult{
		RequestID:            requestID,
		PrimaryIntent:        primary.Intent,
		Candidates:           candidates,
		Entities:             entities,
		RequiresMemoryAccess: primary.Intent == models.IntentStoreMemory || primary.Intent == models.IntentRetrieveMemory,
		RequiresExternalData: primary.Intent == models.IntentQuestion,
		Heuristic:            heuristic,
	}
}

// hasAnyPrefix matches on word boundaries so "hi" does not match
// "history".
func hasAnyPrefix(q string, prefixes []string) bool {
	for _, p := range prefixes {
		if q == p {
			return true
		}
		if strings.HasPrefix(q, p) && len(q) > len(p) {
			next := q[len(p)]
			if next == ' ' || next == ',' || next == '!' || next == '?' || next == '.' {
				return true
			}
		}
	}
	return false
}

func containsAny(q string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(q, c) {
			return true
		}
	}
	return false
}
