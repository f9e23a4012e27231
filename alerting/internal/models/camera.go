package models

import "time"

type CameraStatus string

const (
	CameraActive   CameraStatus = "active"
	CameraInactive CameraStatus = "inactive"
	CameraAlert    CameraStatus = "alert"
)

func (s CameraStatus) Valid() bool {
	switch s {
	case CameraActive, CameraInactive, CameraAlert:
		return true
	}
	return false
}

type Camera struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Location     string       `json:"location"`
	Status       CameraStatus `json:"status"`
	LastActivity time.Time    `json:"last_activity"`
}

type CameraListResponse struct {
	Cameras []Camera `json:"cameras"`
	Total   int      `json:"total"`
}
