package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"weaponwatch/alerting/internal/models"
)

type CameraLister interface {
	List() []models.Camera
}

type CameraHandler struct {
	cameras CameraLister
}

func NewCameraHandler(cameras CameraLister) *CameraHandler {
	return &CameraHandler{cameras: cameras}
}

func (h *CameraHandler) List(ctx *gin.Context) {
	cameras := h.cameras.List()
	ctx.JSON(http.StatusOK, models.CameraListResponse{Cameras: cameras, Total: len(cameras)})
}
