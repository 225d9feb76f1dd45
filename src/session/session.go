package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/verseflow/verseflow/src/chat"
	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/models"
)

// cacheProviderID marks cache-sourced answers on the wire.
const cacheProviderID = "cache"

// OutboundSink is the transport half of a connection. Send must be
// safe for concurrent use; it may fail once the client is gone.
type OutboundSink interface {
	Send(msg *models.WireMessage) error
	Close()
}

// requestHandle is the cancellation handle for one in-flight request.
// It is registered at most once per request id and removed exactly
// once on any terminal outcome; double-removal is a no-op.
type requestHandle struct {
	id        string
	cancel    context.CancelFunc
	cancelled atomic.Bool
	removed   sync.Once
	terminal  sync.Once
}

// Session owns one long-lived client connection. It tracks every
// in-flight generation request for that connection, forwards fragments
// as they arrive, and runs intent classification concurrently with
// generation without blocking delivery of output.
type Session struct {
	connectionID string
	sink         OutboundSink
	generator    models.Generator
	cache        models.SemanticCacheStore
	classifier   models.IntentClassifier
	contexts     *chat.ContextStore
	cfg          *config.SessionConfig

	mu           sync.Mutex
	active       map[string]*requestHandle
	lastActivity time.Time
	closed       bool

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func New(connectionID string, sink OutboundSink, generator models.Generator, cache models.SemanticCacheStore, classifier models.IntentClassifier, contexts *chat.ContextStore, cfg *config.SessionConfig) *Session {
	s := &Session{
		connectionID: connectionID,
		sink:         sink,
		generator:    generator,
		cache:        cache,
		classifier:   classifier,
		contexts:     contexts,
		cfg:          cfg,
		active:       make(map[string]*requestHandle),
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}
	go s.keepaliveLoop()
	return s
}

// Done is closed when the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// HandleMessage dispatches one inbound wire message. For llm_request
// it returns the allocated request id; otherwise the empty string.
func (s *Session) HandleMessage(msg *models.WireMessage) string {
	s.touch()

	switch msg.Type {
	case models.MsgLLMRequest:
		opts := models.GenerationOptions{}
		if msg.Options != nil {
			opts = *msg.Options
		}
		return s.Submit(msg.ID, msg.Prompt, msg.Provider, opts)
	case models.MsgInterrupt, models.MsgCancel:
		s.Cancel(msg.TargetID)
	case models.MsgHeartbeat:
		// touch above is the whole point
	default:
		log.Debug("ignoring unknown message type", "type", msg.Type, "connection", s.connectionID)
	}
	return ""
}

// Submit registers a new request and starts its two tasks: the
// generation pipeline and intent classification, both scoped to one
// cancellation handle. It returns the allocated request id.
func (s *Session) Submit(id, prompt, preferredProvider string, opts models.GenerationOptions) string {
	if id == "" {
		id = uuid.New().String()
	}

	if strings.TrimSpace(prompt) == "" {
		s.send(&models.WireMessage{
			Type:     models.MsgLLMError,
			ParentID: id,
			Code:     models.CodeInvalidRequest,
			Message:  models.ErrInvalidRequest.Error(),
		})
		return id
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &requestHandle{id: id, cancel: cancel}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return id
	}
	if _, exists := s.active[id]; exists {
		s.mu.Unlock()
		cancel()
		s.send(&models.WireMessage{
			Type:     models.MsgLLMError,
			ParentID: id,
			Code:     models.CodeInvalidRequest,
			Message:  "duplicate request id",
		})
		return id
	}
	s.active[id] = h
	s.lastActivity = time.Now()
	s.mu.Unlock()

	req := &models.GenerationRequest{
		ID:                id,
		Prompt:            prompt,
		PreferredProvider: preferredProvider,
		Options:           opts,
		ConnectionID:      s.connectionID,
	}

	// Classification runs alongside generation; the buffered channel
	// lets the classifier goroutine finish even if nobody is waiting.
	intentCh := make(chan *models.IntentResult, 1)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		intentCh <- s.classifier.Classify(ctx, id, prompt)
	}()
	go func() {
		defer s.wg.Done()
		s.runPipeline(ctx, h, req, intentCh)
	}()

	return id
}

// Cancel triggers the cancellation handle for one request, or for
// every in-flight request when target is "all". Cancelling an unknown
// or already-finished request is a no-op.
func (s *Session) Cancel(target string) {
	s.mu.Lock()
	var handles []*requestHandle
	if target == models.CancelAll {
		for _, h := range s.active {
			handles = append(handles, h)
		}
	} else if h, ok := s.active[target]; ok {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.cancelled.Store(true)
		h.cancel()
	}
}

// ActiveRequests reports the number of in-flight requests.
func (s *Session) ActiveRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Close cancels all outstanding requests and shuts the session down.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.Cancel(models.CancelAll)
		close(s.done)
		s.wg.Wait()
		s.sink.Close()
	})
}

// runPipeline is task (1) of a request: cache check, fallback
// generation, cache write, history append. It settles the terminal
// marker itself so a provider that completes without a clean signal
// cannot leave the stream open, then forwards the classification
// result so "answer" always precedes "classification" on the wire.
func (s *Session) runPipeline(ctx context.Context, h *requestHandle, req *models.GenerationRequest, intentCh <-chan *models.IntentResult) {
	defer s.finish(h)

	start := time.Now()
	s.send(&models.WireMessage{Type: models.MsgStreamStart, ID: req.ID})

	result, err := s.resolve(ctx, h, req, start)

	switch {
	case err == nil:
		s.sendTerminal(h, &models.WireMessage{
			Type:             models.MsgStreamEnd,
			ParentID:         req.ID,
			FullText:         result.FullText,
			Provider:         result.ProviderID,
			ProcessingTimeMs: result.Elapsed.Milliseconds(),
			TokenUsage:       &result.TokenUsage,
			FallbackChain:    result.FallbackChain,
		})
		s.recordExchange(req, result)
	case s.isCancelled(h, err):
		// Cancellation is not an error and is never reported as one.
		s.sendTerminal(h, &models.WireMessage{Type: models.MsgCancelled, ParentID: req.ID})
		return
	case errors.Is(err, models.ErrInvalidRequest):
		s.sendTerminal(h, &models.WireMessage{
			Type:     models.MsgLLMError,
			ParentID: req.ID,
			Code:     models.CodeInvalidRequest,
			Message:  err.Error(),
		})
	default:
		s.sendTerminal(h, errorMessage(req.ID, err))
	}

	// Terminal state reached; classification may now go out.
	if intent := <-intentCh; intent != nil {
		s.send(&models.WireMessage{
			Type:                 models.MsgIntent,
			ParentID:             req.ID,
			PrimaryIntent:        intent.PrimaryIntent,
			Intents:              intent.Candidates,
			Entities:             intent.Entities,
			RequiresMemoryAccess: intent.RequiresMemoryAccess,
			RequiresExternalData: intent.RequiresExternalData,
		})
	}
}

// resolve produces the GenerationResult for a request: semantic cache
// first, then the fallback router, streaming fragments to the client
// through a bounded single-consumer channel.
func (s *Session) resolve(ctx context.Context, h *requestHandle, req *models.GenerationRequest, start time.Time) (*models.GenerationResult, error) {
	if s.cache != nil && !h.cancelled.Load() {
		if hit := s.cache.Lookup(ctx, req.Prompt); hit != nil && ctx.Err() == nil {
			s.send(&models.WireMessage{
				Type:     models.MsgStreamChunk,
				ParentID: req.ID,
				Text:     hit.Answer,
				Provider: cacheProviderID,
			})
			return &models.GenerationResult{
				RequestID:     req.ID,
				FullText:      hit.Answer,
				ProviderID:    cacheProviderID,
				Elapsed:       time.Since(start),
				FallbackChain: []string{cacheProviderID},
				CacheHit:      true,
				Similarity:    hit.Similarity,
				Timestamp:     time.Now(),
			}, nil
		}
	}

	genReq := *req
	genReq.Prompt = s.composePrompt(ctx, req)

	type outcome struct {
		result *models.GenerationResult
		err    error
	}
	outCh := make(chan outcome, 1)
	fragCh := make(chan models.GenerationFragment, 1)

	go func() {
		result, err := s.generator.Generate(ctx, &genReq, func(f models.GenerationFragment) error {
			select {
			case fragCh <- f:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		close(fragCh)
		outCh <- outcome{result, err}
	}()

	for f := range fragCh {
		s.send(&models.WireMessage{
			Type:     models.MsgStreamChunk,
			ParentID: req.ID,
			Text:     f.Text,
			Provider: f.ProviderID,
		})
	}

	out := <-outCh
	return out.result, out.err
}

// composePrompt prepends the bounded conversation history to the
// user's question.
func (s *Session) composePrompt(ctx context.Context, req *models.GenerationRequest) string {
	if s.contexts == nil {
		return req.Prompt
	}
	cc, err := s.contexts.Get(ctx, s.connectionID)
	if err != nil {
		log.Warn("failed to load conversation context", "connection", s.connectionID, "err", err)
		return req.Prompt
	}
	block := s.contexts.BuildPromptContext(cc)
	if block == "" {
		return req.Prompt
	}
	return block + "\nQuestion: " + req.Prompt
}

// recordExchange stores the completed answer in the cache and appends
// the turn to conversation history. Both are best effort and never
// affect the already-delivered result.
func (s *Session) recordExchange(req *models.GenerationRequest, result *models.GenerationResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.cache != nil && !result.CacheHit {
		s.cache.Store(ctx, req.Prompt, result.FullText, result.ProviderID)
	}

	if s.contexts != nil {
		if err := s.contexts.AppendExchange(ctx, s.connectionID, req.Prompt, result.FullText); err != nil {
			log.Warn("failed to append conversation history", "connection", s.connectionID, "err", err)
		}
	}
}

// finish removes the handle from the active set. Safe to call more
// than once; only the first call does anything.
func (s *Session) finish(h *requestHandle) {
	h.removed.Do(func() {
		s.mu.Lock()
		delete(s.active, h.id)
		s.mu.Unlock()
		h.cancel()
	})
}

// isCancelled distinguishes user/session cancellation from failures.
func (s *Session) isCancelled(h *requestHandle, err error) bool {
	return h.cancelled.Load() || errors.Is(err, context.Canceled)
}

// sendTerminal emits a request's terminal marker exactly once.
func (s *Session) sendTerminal(h *requestHandle, msg *models.WireMessage) {
	h.terminal.Do(func() {
		s.send(msg)
	})
}

func (s *Session) send(msg *models.WireMessage) {
	if err := s.sink.Send(msg); err != nil {
		log.Debug("outbound send failed", "connection", s.connectionID, "type", msg.Type, "err", err)
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// keepaliveLoop emits periodic heartbeats and closes the session once
// no client activity is seen within the idle window.
func (s *Session) keepaliveLoop() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastActivity)
			s.mu.Unlock()

			if s.cfg.IdleTimeout > 0 && idle > s.cfg.IdleTimeout {
				log.Info("closing idle session", "connection", s.connectionID, "idle", idle)
				go s.Close()
				return
			}
			s.send(&models.WireMessage{Type: models.MsgHeartbeat})
		}
	}
}

func errorMessage(requestID string, err error) *models.WireMessage {
	code := models.CodeProviderFailed
	var exhausted *models.AllProvidersExhaustedError
	if errors.As(err, &exhausted) {
		code = models.CodeAllProvidersExhausted
	}
	return &models.WireMessage{
		Type:        models.MsgLLMError,
		ParentID:    requestID,
		Code:        code,
		Message:     err.Error(),
		Recoverable: true,
	}
}
