package repository

import (
	"iter"
	"time"

	"weaponwatch/alerting/internal/models"
)

// AlertRepository is the canonical alert collection. It is the only place
// lifecycle transitions are applied.
type AlertRepository interface {
	// Insert adds a new alert. It fails with ErrDuplicateID when the id is
	// already present and ErrInvalidAlert when the alert is malformed.
	Insert(alert models.Alert) error
	// UpdateStatus moves an alert forward in its lifecycle and returns the
	// updated alert together with the status it had before.
	UpdateStatus(id string, status models.Status) (models.Alert, models.Status, error)
	Get(id string) (models.Alert, error)
	Exists(id string) bool
	// List yields a read-only snapshot taken when iteration starts, most
	// recently inserted first.
	List() iter.Seq[models.Alert]
	Len() int
}

// CameraRegistry holds the camera roster and its live status.
type CameraRegistry interface {
	List() []models.Camera
	ActiveNames() []string
	Location(name string) (string, bool)
	MarkAlert(name string, at time.Time) bool
	SetStatus(id string, status models.CameraStatus, at time.Time) error
}

// HealthChecker defines health check operations
type HealthChecker interface {
	CheckHealth() error
}
