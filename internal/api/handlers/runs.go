// Package handlers exposes completed run output over HTTP. All read
// endpoints serve the latest in-memory run; nothing recomputes on request.
package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/props-engine/internal/runner"
)

type RunHandler struct {
	runner *runner.Runner
	logger *logrus.Logger

	mu      sync.Mutex
	running bool
}

func NewRunHandler(r *runner.Runner, logger *logrus.Logger) *RunHandler {
	return &RunHandler{runner: r, logger: logger}
}

func (h *RunHandler) latest(c *gin.Context) *runner.Output {
	out := h.runner.Latest()
	if out == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "no completed run yet",
		})
		return nil
	}
	return out
}

func (h *RunHandler) GetSummary(c *gin.Context) {
	if out := h.latest(c); out != nil {
		c.JSON(http.StatusOK, out.Summary)
	}
}

func (h *RunHandler) GetRoles(c *gin.Context) {
	if out := h.latest(c); out != nil {
		c.JSON(http.StatusOK, out.Report)
	}
}

func (h *RunHandler) GetProjections(c *gin.Context) {
	out := h.latest(c)
	if out == nil {
		return
	}
	if out.Projections == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run completed without a lines table"})
		return
	}
	c.JSON(http.StatusOK, out.Projections)
}

func (h *RunHandler) GetSuggestions(c *gin.Context) {
	out := h.latest(c)
	if out == nil {
		return
	}
	if out.Suggestions == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run completed without a lines table"})
		return
	}
	c.JSON(http.StatusOK, out.Suggestions)
}

// TriggerRun executes a run synchronously. Concurrent triggers are rejected
// so overlapping runs never race on the output directory.
func (h *RunHandler) TriggerRun(c *gin.Context) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}
	h.running = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	out, err := h.runner.Run(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Triggered run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out.Summary)
}
