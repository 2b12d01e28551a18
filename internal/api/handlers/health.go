package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/props-engine/internal/cache"
	"github.com/stitts-dev/props-engine/internal/runner"
)

type HealthHandler struct {
	cache  *cache.Cache
	runner *runner.Runner
	logger *logrus.Logger
}

func NewHealthHandler(c *cache.Cache, r *runner.Runner, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		cache:  c,
		runner: r,
		logger: logger,
	}
}

type HealthResponse struct {
	Service   string                 `json:"service"`
	Status    string                 `json:"status"`
	Timestamp int64                  `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := HealthResponse{
		Service:   "props-engine",
		Status:    "healthy",
		Timestamp: time.Now().Unix(),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, response)
}

// GetReady reports readiness: the optional cache must answer a ping when
// configured, and at least one run must have completed.
func (h *HealthHandler) GetReady(c *gin.Context) {
	details := make(map[string]interface{})
	status := "ready"
	code := http.StatusOK

	if h.cache.Enabled() {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			h.logger.WithError(err).Warn("Redis ping failed")
			details["redis"] = "unreachable"
			status = "degraded"
		} else {
			details["redis"] = "ok"
		}
	} else {
		details["redis"] = "disabled"
	}

	if h.runner.Latest() == nil {
		details["runs"] = "none completed"
		status = "not ready"
		code = http.StatusServiceUnavailable
	} else {
		details["runs"] = "ok"
	}

	c.JSON(code, HealthResponse{
		Service:   "props-engine",
		Status:    status,
		Timestamp: time.Now().Unix(),
		Details:   details,
	})
}
