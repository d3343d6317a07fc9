package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

const engineHealthTimeout = 5 * time.Second

type EngineHealthChecker interface {
	Health(ctx context.Context) (*engine.Health, error)
}

type HealthHandler struct {
	log    *logger.Logger
	engine EngineHealthChecker
}

func NewHealthHandler(log *logger.Logger, eng EngineHealthChecker) *HealthHandler {
	return &HealthHandler{log: log.With("handler", "HealthHandler"), engine: eng}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /api/engine/health
func (h *HealthHandler) EngineHealth(c *gin.Context) {
	if h.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "engine not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), engineHealthTimeout)
	defer cancel()
	health, err := h.engine.Health(ctx)
	if err != nil {
		h.log.Warn("engine health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, health)
}
