package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/handlers"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Alerts    *handlers.AlertHandler
	Health    *handlers.HealthHandler
	Cameras   *handlers.CameraHandler
	Webcam    *handlers.WebcamHandler
	WebSocket *handlers.WebSocketHandler
	Metrics   http.Handler
}

type Server struct {
	router   *gin.Engine
	handlers Handlers
	http     *http.Server
	logger   *zap.Logger
}

func New(h Handlers, port int, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		router:   router,
		handlers: h,
		logger:   logger,
	}
	s.http = &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.SetupRoutes()
	return s
}

func (s *Server) SetupRoutes() {
	s.router.GET("/health", s.handlers.Health.Health)
	s.router.GET("/system/status", s.handlers.Health.SystemStatus)

	if s.handlers.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.handlers.Metrics))
	}
	if s.handlers.WebSocket != nil {
		s.router.GET("/ws", s.handlers.WebSocket.Serve)
	}

	api := s.router.Group("/api/v1")
	{
		alerts := api.Group("/alerts")
		alerts.GET("", s.handlers.Alerts.List)
		alerts.POST("", s.handlers.Alerts.Create)
		alerts.GET("/:id", s.handlers.Alerts.GetByID)
		alerts.PATCH("/:id", s.handlers.Alerts.UpdateStatus)
		alerts.POST("/:id/acknowledge", s.handlers.Alerts.Acknowledge)

		api.GET("/stats", s.handlers.Alerts.Stats)
		api.GET("/export/alerts.csv", s.handlers.Alerts.ExportCSV)
		api.GET("/export/alerts.xlsx", s.handlers.Alerts.ExportXLSX)

		api.GET("/cameras", s.handlers.Cameras.List)

		api.GET("/webcam", s.handlers.Webcam.Status)
		api.POST("/webcam/start", s.handlers.Webcam.Start)
		api.POST("/webcam/stop", s.handlers.Webcam.Stop)
		api.GET("/stream", s.handlers.Webcam.Stream)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It returns nil on a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		logger.Debug("HTTP request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
