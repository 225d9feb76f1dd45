package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/mocks"
	"github.com/verseflow/verseflow/src/models"
	"github.com/verseflow/verseflow/src/session"
)

type generatorFunc func(ctx context.Context, req *models.GenerationRequest, onFragment func(models.GenerationFragment) error) (*models.GenerationResult, error)

func (f generatorFunc) Generate(ctx context.Context, req *models.GenerationRequest, onFragment func(models.GenerationFragment) error) (*models.GenerationResult, error) {
	return f(ctx, req, onFragment)
}

func echoGenerator() generatorFunc {
	return func(_ context.Context, req *models.GenerationRequest, onFragment func(models.GenerationFragment) error) (*models.GenerationResult, error) {
		if err := onFragment(models.GenerationFragment{RequestID: req.ID, Text: "echo: " + req.Prompt, ProviderID: "primary"}); err != nil {
			return nil, err
		}
		return &models.GenerationResult{
			RequestID:     req.ID,
			FullText:      "echo: " + req.Prompt,
			ProviderID:    "primary",
			FallbackChain: []string{"primary"},
		}, nil
	}
}

func testManager() *session.Manager {
	classifier := &mocks.MockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).Return(&models.IntentResult{
		PrimaryIntent: models.IntentQuestion,
		Candidates:    []models.IntentCandidate{{Intent: models.IntentQuestion, Confidence: 0.8}},
		Entities:      []string{},
	}).Maybe()

	return session.NewManager(echoGenerator(), nil, classifier, nil, &config.SessionConfig{
		HeartbeatInterval: time.Hour,
	})
}

func testRouter(m *session.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewStreamHandler(m, 64)
	r := gin.New()
	r.GET("/api/v1/stream/:connection_id", h.HandleStream)
	r.POST("/api/v1/stream/:connection_id/messages", h.HandleInbound)
	return r
}

func TestSSESink_SendAndClose(t *testing.T) {
	sink := newSSESink(2)

	require.NoError(t, sink.Send(&models.WireMessage{Type: models.MsgHeartbeat}))
	require.NoError(t, sink.Send(&models.WireMessage{Type: models.MsgHeartbeat}))
	assert.ErrorIs(t, sink.Send(&models.WireMessage{Type: models.MsgHeartbeat}), errSlowClient)

	sink.Close()
	sink.Close()
	assert.ErrorIs(t, sink.Send(&models.WireMessage{Type: models.MsgHeartbeat}), errSinkClosed)
}

func TestHandleInbound_NoActiveStream(t *testing.T) {
	r := testRouter(testManager())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stream/conn-1/messages",
		strings.NewReader(`{"type":"llm_request","prompt":"hi"}`))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleInbound_BadRequests(t *testing.T) {
	m := testManager()
	r := testRouter(m)

	sess := m.Attach("conn-1", newSSESink(64))
	defer m.Detach("conn-1", sess)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stream/conn-1/messages",
		strings.NewReader(`not json`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/stream/conn-1/messages",
		strings.NewReader(`{"prompt":"no type field"}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleInbound_AcceptsRequestAndReturnsID(t *testing.T) {
	m := testManager()
	r := testRouter(m)

	sess := m.Attach("conn-1", newSSESink(64))
	defer m.Detach("conn-1", sess)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stream/conn-1/messages",
		bytes.NewReader([]byte(`{"type":"llm_request","prompt":"What is Go?"}`)))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["accepted"])
	assert.NotEmpty(t, body["id"])
}

func TestHandleStream_EndToEnd(t *testing.T) {
	m := testManager()
	srv := httptest.NewServer(testRouter(m))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	streamReq, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream/conn-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(streamReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return m.Get("conn-1") != nil }, time.Second, 5*time.Millisecond)

	post, err := http.Post(srv.URL+"/api/v1/stream/conn-1/messages", "application/json",
		strings.NewReader(`{"type":"llm_request","id":"req-1","prompt":"What is Go?"}`))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusAccepted, post.StatusCode)

	var seen []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		seen = append(seen, line)
		if strings.Contains(line, models.MsgStreamEnd) {
			break
		}
	}

	require.NotEmpty(t, seen, "no SSE data frames received")
	assert.Contains(t, seen[0], models.MsgStreamStart)
	joined := strings.Join(seen, "\n")
	assert.Contains(t, joined, "echo: What is Go?")

	cancel()
	require.Eventually(t, func() bool { return m.Get("conn-1") == nil }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := testManager()
	h := NewHealthHandler(m)

	r := gin.New()
	r.GET("/api/v1/health", h.HealthCheck)

	sess := m.Attach("conn-1", newSSESink(4))
	defer m.Detach("conn-1", sess)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["sessions"])
}
