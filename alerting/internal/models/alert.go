package models

import (
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities for sorting: critical 3, warning 2, info 1.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

type Status string

const (
	StatusPending      Status = "pending"
	StatusSent         Status = "sent"
	StatusAcknowledged Status = "acknowledged"
)

// Rank is the lifecycle position. Unknown statuses rank -1.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSent:
		return 1
	case StatusAcknowledged:
		return 2
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// forward-only. Staying on the same status is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	return s.Valid() && next.Valid() && next.Rank() >= s.Rank()
}

// Detection origins.
const (
	SourceSimulator = "simulator"
	SourceRemote    = "remote"
	SourceWebcam    = "webcam"
	SourceEdge      = "edge"
	SourceManual    = "manual"
)

type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Alert struct {
	ID             string       `json:"id"`
	Source         string       `json:"source"`
	SourceID       string       `json:"source_id"`
	Timestamp      time.Time    `json:"timestamp"`
	Camera         string       `json:"camera"`
	Location       string       `json:"location,omitempty"`
	Weapon         string       `json:"weapon"`
	Confidence     float64      `json:"confidence"`
	Severity       Severity     `json:"severity"`
	Status         Status       `json:"status"`
	BBox           *BoundingBox `json:"bbox,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	AcknowledgedAt *time.Time   `json:"acknowledged_at,omitempty"`
}

// Clone returns a copy that shares no pointers with a.
func (a Alert) Clone() Alert {
	if a.BBox != nil {
		b := *a.BBox
		a.BBox = &b
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		a.AcknowledgedAt = &t
	}
	return a
}

// Candidate is a detection proposed by a source, not yet deduplicated.
type Candidate struct {
	Source     string
	SourceID   string
	Weapon     string
	Confidence float64
	Timestamp  time.Time
	Camera     string
	Location   string
	BBox       *BoundingBox
	// Manual marks operator-entered reports, which always get info severity.
	Manual bool
}

// Request/Response DTOs
type CreateAlertRequest struct {
	Camera     string     `json:"camera" binding:"required"`
	Weapon     string     `json:"weapon" binding:"required"`
	Confidence *float64   `json:"confidence" binding:"required"`
	Location   string     `json:"location"`
	Timestamp  *time.Time `json:"timestamp"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status" binding:"required"`
}

type AlertListResponse struct {
	Alerts []Alert `json:"alerts"`
	Total  int     `json:"total"`
}

type AcknowledgeResponse struct {
	Alert         Alert  `json:"alert"`
	RemoteRelayed bool   `json:"remote_relayed"`
	RemoteError   string `json:"remote_error,omitempty"`
}

type StatsResponse struct {
	Total             int      `json:"total"`
	CriticalCount     int      `json:"critical_count"`
	PendingCount      int      `json:"pending_count"`
	AcknowledgedCount int      `json:"acknowledged_count"`
	AverageConfidence *float64 `json:"average_confidence"`
}
