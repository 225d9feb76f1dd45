package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verseflow/verseflow/src/session"
)

type HealthHandler struct {
	manager *session.Manager
}

func NewHealthHandler(manager *session.Manager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"sessions":  h.manager.Count(),
		"timestamp": time.Now().UTC(),
	})
}
