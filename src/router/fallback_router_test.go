package router

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/models"
)

// fakeProvider emits its scripted fragments, then fails with err if
// set. delay is applied before any emission and respects context
// cancellation, which is how a timing-out vendor behaves.
type fakeProvider struct {
	name      string
	fragments []string
	err       error
	delay     time.Duration
	calls     atomic.Int32
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) GenerateStream(ctx context.Context, prompt string, opts models.GenerationOptions, onFragment func(string) error) (string, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	var full strings.Builder
	for _, f := range p.fragments {
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}
		full.WriteString(f)
		if err := onFragment(f); err != nil {
			return full.String(), err
		}
	}
	if p.err != nil {
		return full.String(), p.err
	}
	return full.String(), nil
}

func (p *fakeProvider) Complete(ctx context.Context, prompt string, opts models.GenerationOptions) (string, error) {
	full, err := p.GenerateStream(ctx, prompt, opts, func(string) error { return nil })
	return full, err
}

func newTestRouter(adapters ...models.ProviderAdapter) *FallbackRouter {
	return NewFallbackRouter(adapters, &config.RouterConfig{AttemptTimeout: 100 * time.Millisecond})
}

func testRequest(prompt string) *models.GenerationRequest {
	return &models.GenerationRequest{
		ID:           "req-1",
		Prompt:       prompt,
		ConnectionID: "conn-1",
	}
}

func collectFragments(collected *[]models.GenerationFragment) func(models.GenerationFragment) error {
	return func(f models.GenerationFragment) error {
		*collected = append(*collected, f)
		return nil
	}
}

func TestFallbackRouter_FirstProviderSucceeds(t *testing.T) {
	a := &fakeProvider{name: "A", fragments: []string{"Love ", "is ", "patient."}}
	b := &fakeProvider{name: "B", fragments: []string{"unused"}}
	r := newTestRouter(a, b)

	var frags []models.GenerationFragment
	result, err := r.Generate(context.Background(), testRequest("What does love mean?"), collectFragments(&frags))

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, result.FallbackChain)
	assert.Equal(t, "Love is patient.", result.FullText)
	assert.Equal(t, "A", result.ProviderID)
	assert.Len(t, frags, 3)
	assert.Equal(t, "Love ", frags[0].Text)
	assert.Equal(t, int32(0), b.calls.Load(), "second provider must not be attempted")
	assert.Greater(t, result.TokenUsage.TotalTokens, 0)
}

func TestFallbackRouter_AdvancesOnFailureBeforeFragment(t *testing.T) {
	a := &fakeProvider{name: "A", err: errors.New("rate limited")}
	b := &fakeProvider{name: "B", fragments: []string{"answer"}}
	r := newTestRouter(a, b)

	var frags []models.GenerationFragment
	result, err := r.Generate(context.Background(), testRequest("hello?"), collectFragments(&frags))

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, result.FallbackChain)
	assert.Equal(t, "B", result.ProviderID)
	require.Len(t, frags, 1)
	assert.Equal(t, "B", frags[0].ProviderID)
}

func TestFallbackRouter_TimeoutAdvancesChain(t *testing.T) {
	a := &fakeProvider{name: "A", delay: time.Second, fragments: []string{"never"}}
	b := &fakeProvider{name: "B", fragments: []string{"answer"}}
	r := newTestRouter(a, b)

	var frags []models.GenerationFragment
	result, err := r.Generate(context.Background(), testRequest("slow vendor?"), collectFragments(&frags))

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, result.FallbackChain)
}

func TestFallbackRouter_FailureAfterFragmentIsTerminal(t *testing.T) {
	a := &fakeProvider{name: "A", fragments: []string{"partial "}, err: errors.New("connection reset")}
	b := &fakeProvider{name: "B", fragments: []string{"full answer"}}
	r := newTestRouter(a, b)

	var frags []models.GenerationFragment
	_, err := r.Generate(context.Background(), testRequest("risky?"), collectFragments(&frags))

	require.Error(t, err)
	var provErr *models.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "A", provErr.Provider)
	assert.True(t, provErr.Emitted)
	assert.Equal(t, int32(0), b.calls.Load(), "no provider may follow one that emitted")
	assert.Len(t, frags, 1, "partial output is not retracted")
}

func TestFallbackRouter_AllProvidersExhausted(t *testing.T) {
	a := &fakeProvider{name: "A", err: errors.New("quota exceeded")}
	b := &fakeProvider{name: "B", err: errors.New("upstream 500")}
	r := newTestRouter(a, b)

	var frags []models.GenerationFragment
	_, err := r.Generate(context.Background(), testRequest("doomed?"), collectFragments(&frags))

	require.Error(t, err)
	assert.True(t, IsExhausted(err))
	var exhausted *models.AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Failures, 2)
	assert.Equal(t, "A", exhausted.Failures[0].Provider)
	assert.Equal(t, "B", exhausted.Failures[1].Provider)
	assert.Contains(t, exhausted.Failures[0].Reason, "quota exceeded")
	assert.Empty(t, frags)
}

func TestFallbackRouter_PreferredProviderFirst(t *testing.T) {
	a := &fakeProvider{name: "A", fragments: []string{"from A"}}
	b := &fakeProvider{name: "B", fragments: []string{"from B"}}
	r := newTestRouter(a, b)

	req := testRequest("pick B please")
	req.PreferredProvider = "B"

	var frags []models.GenerationFragment
	result, err := r.Generate(context.Background(), req, collectFragments(&frags))

	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, result.FallbackChain)
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestFallbackRouter_UnknownPreferredFallsBackToPriority(t *testing.T) {
	a := &fakeProvider{name: "A", fragments: []string{"from A"}}
	r := newTestRouter(a)

	req := testRequest("anything")
	req.PreferredProvider = "no-such-provider"

	result, err := r.Generate(context.Background(), req, func(models.GenerationFragment) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, result.FallbackChain)
}

func TestFallbackRouter_EmptyPromptRejected(t *testing.T) {
	a := &fakeProvider{name: "A", fragments: []string{"never"}}
	r := newTestRouter(a)

	_, err := r.Generate(context.Background(), testRequest("   "), func(models.GenerationFragment) error { return nil })

	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestFallbackRouter_CallerCancellationIsNotProviderFailure(t *testing.T) {
	a := &fakeProvider{name: "A", delay: time.Second, fragments: []string{"never"}}
	r := newTestRouter(a)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Generate(ctx, testRequest("cancelled?"), func(models.GenerationFragment) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsExhausted(err))
}
