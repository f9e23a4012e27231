package models

import "time"

const (
	EventAlertCreated       = "alert.created"
	EventAlertStatusChanged = "alert.status_changed"
)

// AlertEvent is pushed to dashboards and the event stream whenever the
// alert collection changes.
type AlertEvent struct {
	Type           string    `json:"type"`
	Alert          Alert     `json:"alert"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
