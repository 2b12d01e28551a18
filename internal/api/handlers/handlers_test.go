package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/props-engine/internal/config"
	"github.com/stitts-dev/props-engine/internal/runner"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRouter(r *runner.Runner) *gin.Engine {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	health := NewHealthHandler(nil, r, log)
	runs := NewRunHandler(r, log)

	router := gin.New()
	router.GET("/health", health.GetHealth)
	router.GET("/ready", health.GetReady)
	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/summary", runs.GetSummary)
		apiV1.GET("/roles", runs.GetRoles)
		apiV1.GET("/projections", runs.GetProjections)
		apiV1.GET("/suggestions", runs.GetSuggestions)
		apiV1.POST("/run", runs.TriggerRun)
	}
	return router
}

// fixtureRunner writes a minimal data directory (game log and required
// reference tables, no lines) and returns a runner over it.
func fixtureRunner(t *testing.T) *runner.Runner {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.OutputDir = t.TempDir()
	cfg.ModelDir = filepath.Join(cfg.OutputDir, "models")

	var gl strings.Builder
	gl.WriteString("date,player,team,min,pts,reb,ast,stl,blk,tov,fga,fg3a,fta\n")
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for p := 0; p < 16; p++ {
		pts := 12 + float64(p)
		for g := 0; g < 25; g++ {
			fmt.Fprintf(&gl, "%s,Player %02d,Seattle Storm,28,%.0f,5,3,1,0,2,11,4,3\n",
				start.AddDate(0, 0, 2*g).Format("2006-01-02"), p, pts)
		}
	}
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, name), []byte(content), 0o644))
	}
	write("player_game_log.csv", gl.String())
	write("opponent_per100_last6.csv", "TEAM_NAME,OPP_PTS\nSeattle Storm,84\nPhoenix Mercury,88\n")
	write("pace_last6.csv", "TEAM_NAME,PACE\nSeattle Storm,95\nPhoenix Mercury,97\n")

	return runner.New(cfg, nil, nil)
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthAlwaysOK(t *testing.T) {
	router := testRouter(fixtureRunner(t))
	w := get(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"props-engine"`)
}

func TestReadyBeforeFirstRun(t *testing.T) {
	router := testRouter(fixtureRunner(t))
	w := get(router, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "none completed")
}

func TestReadEndpointsBeforeFirstRun(t *testing.T) {
	router := testRouter(fixtureRunner(t))
	for _, path := range []string{
		"/api/v1/summary", "/api/v1/roles", "/api/v1/projections", "/api/v1/suggestions",
	} {
		w := get(router, path)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestTriggerRunThenRead(t *testing.T) {
	router := testRouter(fixtureRunner(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/run", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"run_id"`)

	w = get(router, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(router, "/api/v1/roles")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Player 00")

	// No lines table in the fixture, so line-derived outputs 404.
	w = get(router, "/api/v1/projections")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = get(router, "/api/v1/suggestions")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
