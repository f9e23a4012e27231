package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/frames"
)

type WebcamController interface {
	Start() bool
	Stop() bool
	Status() frames.Status
}

type WebcamHandler struct {
	webcam    WebcamController
	streamURL string
	logger    *zap.Logger
}

// NewWebcamHandler serves the frame loop controls. streamURL is the remote
// video stream handed to clients as-is; empty means none is configured.
func NewWebcamHandler(webcam WebcamController, streamURL string, logger *zap.Logger) *WebcamHandler {
	return &WebcamHandler{webcam: webcam, streamURL: streamURL, logger: logger}
}

func (h *WebcamHandler) Status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.webcam.Status())
}

func (h *WebcamHandler) Start(ctx *gin.Context) {
	changed := h.webcam.Start()
	if changed {
		h.logger.Info("Webcam streaming started")
	}
	ctx.JSON(http.StatusOK, gin.H{"streaming": true, "changed": changed})
}

func (h *WebcamHandler) Stop(ctx *gin.Context) {
	changed := h.webcam.Stop()
	if changed {
		h.logger.Info("Webcam streaming stopped")
	}
	ctx.JSON(http.StatusOK, gin.H{"streaming": false, "changed": changed})
}

func (h *WebcamHandler) Stream(ctx *gin.Context) {
	if h.streamURL == "" {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "No stream configured"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"url": h.streamURL})
}
