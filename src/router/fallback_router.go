package router

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/models"
	"github.com/verseflow/verseflow/src/utils"
)

// FallbackRouter drives provider adapters in priority order with a
// bounded per-attempt deadline. Failures before the first fragment
// advance the chain; once a provider has emitted a fragment it owns
// the request and any later failure is terminal, so partial answers
// from two vendors are never mixed.
type FallbackRouter struct {
	providers      []models.ProviderAdapter
	byName         map[string]models.ProviderAdapter
	attemptTimeout time.Duration
}

func NewFallbackRouter(adapters []models.ProviderAdapter, cfg *config.RouterConfig) *FallbackRouter {
	byName := make(map[string]models.ProviderAdapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &FallbackRouter{
		providers:      adapters,
		byName:         byName,
		attemptTimeout: cfg.AttemptTimeout,
	}
}

// Provider returns the configured adapter by name, or nil.
func (r *FallbackRouter) Provider(name string) models.ProviderAdapter {
	return r.byName[name]
}

// Generate runs the fallback chain for one request, forwarding each
// fragment through onFragment as it arrives. It fails only if every
// configured provider fails, or if the owning provider fails after
// emitting output.
func (r *FallbackRouter) Generate(ctx context.Context, req *models.GenerationRequest, onFragment func(models.GenerationFragment) error) (*models.GenerationResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, models.ErrInvalidRequest
	}

	start := time.Now()
	var chain []string
	var failures []models.ProviderFailure

	for _, provider := range r.order(req.PreferredProvider) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chain = append(chain, provider.Name())

		attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		emitted := false
		fullText, err := provider.GenerateStream(attemptCtx, req.Prompt, req.Options, func(text string) error {
			emitted = true
			return onFragment(models.GenerationFragment{
				RequestID:  req.ID,
				Text:       text,
				ProviderID: provider.Name(),
			})
		})
		timedOut := attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		if err != nil {
			// A cancelled caller is not a provider failure.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if emitted {
				log.Error("provider failed after emitting output, not retrying",
					"provider", provider.Name(), "request", req.ID, "err", err)
				return nil, &models.ProviderError{
					Provider: provider.Name(),
					Err:      err,
					Timeout:  timedOut,
					Emitted:  true,
				}
			}
			log.Warn("provider failed before emitting, advancing chain",
				"provider", provider.Name(), "request", req.ID, "err", err)
			failures = append(failures, models.ProviderFailure{
				Provider: provider.Name(),
				Reason:   err.Error(),
				Timeout:  timedOut,
			})
			continue
		}

		return &models.GenerationResult{
			RequestID:     req.ID,
			FullText:      fullText,
			ProviderID:    provider.Name(),
			Elapsed:       time.Since(start),
			TokenUsage:    utils.EstimateUsage(req.Prompt, fullText),
			FallbackChain: chain,
			Timestamp:     time.Now(),
		}, nil
	}

	return nil, &models.AllProvidersExhaustedError{Failures: failures}
}

// order builds the attempt list: the preferred provider first when it
// is configured, then the remaining providers in priority order.
func (r *FallbackRouter) order(preferred string) []models.ProviderAdapter {
	if preferred == "" {
		return r.providers
	}
	head, ok := r.byName[preferred]
	if !ok {
		return r.providers
	}
	ordered := make([]models.ProviderAdapter, 0, len(r.providers))
	ordered = append(ordered, head)
	for _, p := range r.providers {
		if p.Name() != preferred {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// IsExhausted reports whether err is the terminal whole-chain failure.
func IsExhausted(err error) bool {
	var exhausted *models.AllProvidersExhaustedError
	return errors.As(err, &exhausted)
}
