package handlers

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/verseflow/verseflow/src/models"
	"github.com/verseflow/verseflow/src/session"
)

var (
	errSinkClosed = errors.New("outbound sink closed")
	errSlowClient = errors.New("outbound buffer full, client too slow")
)

// sseSink bridges a session's outbound wire messages onto a buffered
// channel drained by the SSE writer. A client that cannot keep up gets
// send errors rather than blocking the session.
type sseSink struct {
	mu     sync.Mutex
	ch     chan *models.WireMessage
	closed bool
}

func newSSESink(buffer int) *sseSink {
	return &sseSink{ch: make(chan *models.WireMessage, buffer)}
}

func (s *sseSink) Send(msg *models.WireMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	select {
	case s.ch <- msg:
		return nil
	default:
		return errSlowClient
	}
}

func (s *sseSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// StreamHandler exposes the long-lived connection surface: an SSE
// downstream per connection id and an ingress endpoint for inbound
// wire messages.
type StreamHandler struct {
	manager *session.Manager
	buffer  int
}

func NewStreamHandler(manager *session.Manager, outboundBuffer int) *StreamHandler {
	return &StreamHandler{
		manager: manager,
		buffer:  outboundBuffer,
	}
}

// HandleStream attaches a session for the connection and streams its
// outbound messages as SSE events until the client disconnects or the
// session closes.
func (h *StreamHandler) HandleStream(c *gin.Context) {
	connectionID := c.Param("connection_id")
	if connectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "connection_id is required"})
		return
	}

	sink := newSSESink(h.buffer)
	sess := h.manager.Attach(connectionID, sink)
	defer h.manager.Detach(connectionID, sess)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-sink.ch:
			if !ok {
				return false
			}
			c.SSEvent("message", msg)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// HandleInbound dispatches one client wire message to the owning
// session.
func (h *StreamHandler) HandleInbound(c *gin.Context) {
	connectionID := c.Param("connection_id")
	sess := h.manager.Get(connectionID)
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active stream for connection"})
		return
	}

	var msg models.WireMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message type is required"})
		return
	}

	id := sess.HandleMessage(&msg)
	resp := gin.H{"accepted": true}
	if id != "" {
		resp["id"] = id
	}
	c.JSON(http.StatusAccepted, resp)
}
