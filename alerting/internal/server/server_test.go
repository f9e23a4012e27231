package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/config"
	"weaponwatch/alerting/internal/frames"
	"weaponwatch/alerting/internal/handlers"
	"weaponwatch/alerting/internal/ingest"
	"weaponwatch/alerting/internal/metrics"
	"weaponwatch/alerting/internal/repository"
	"weaponwatch/alerting/internal/sources"
	"weaponwatch/alerting/internal/websocket"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	cfg := config.Default()
	m := metrics.NewMetrics()
	repo := repository.NewMemoryAlertRepository()
	cameras := repository.NewCameraRegistry(cfg.Cameras, time.Now())
	pipeline := ingest.NewPipeline(repo, cameras, logger, ingest.WithMetrics(m))
	loop := frames.NewLoop(cfg.Webcam)
	controller := frames.NewController(t.Context(), loop, sources.NewRunner(loop, pipeline, cfg.Webcam.SampleInterval, logger))

	return New(Handlers{
		Alerts:    handlers.NewAlertHandler(repo, pipeline, ingest.NewAcknowledger(pipeline, nil, m, logger), logger),
		Health:    handlers.NewHealthHandler(repo, repo, nil, time.Now()),
		Cameras:   handlers.NewCameraHandler(cameras),
		Webcam:    handlers.NewWebcamHandler(controller, "", logger),
		WebSocket: handlers.NewWebSocketHandler(websocket.NewHub(logger), logger),
		Metrics:   m.Handler(),
	}, 0, logger)
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/system/status", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/alerts", http.StatusOK},
		{http.MethodGet, "/api/v1/alerts/unknown", http.StatusNotFound},
		{http.MethodGet, "/api/v1/stats", http.StatusOK},
		{http.MethodGet, "/api/v1/export/alerts.csv", http.StatusOK},
		{http.MethodGet, "/api/v1/cameras", http.StatusOK},
		{http.MethodGet, "/api/v1/webcam", http.StatusOK},
		{http.MethodGet, "/api/v1/stream", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/alerts/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
