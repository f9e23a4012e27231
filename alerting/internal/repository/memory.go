package repository

import (
	"fmt"
	"iter"
	"math"
	"sync"
	"time"

	"weaponwatch/alerting/internal/models"
)

// MemoryAlertRepository keeps the alert collection for the lifetime of the
// process. Mutations are atomic under the write lock.
type MemoryAlertRepository struct {
	mu     sync.RWMutex
	alerts map[string]*models.Alert
	order  []string
	now    func() time.Time
}

func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{
		alerts: make(map[string]*models.Alert),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for created/updated stamps.
func (r *MemoryAlertRepository) WithClock(now func() time.Time) *MemoryAlertRepository {
	r.now = now
	return r
}

func (r *MemoryAlertRepository) Insert(alert models.Alert) error {
	if err := validate(alert); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[alert.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, alert.ID)
	}

	stored := alert.Clone()
	now := r.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.Status == models.StatusAcknowledged && stored.AcknowledgedAt == nil {
		stored.AcknowledgedAt = &now
	}
	r.alerts[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	return nil
}

func (r *MemoryAlertRepository) UpdateStatus(id string, status models.Status) (models.Alert, models.Status, error) {
	if !status.Valid() {
		return models.Alert{}, "", fmt.Errorf("%w: unknown status %q", ErrInvalidAlert, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return models.Alert{}, "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	previous := alert.Status
	if previous == status {
		return alert.Clone(), previous, nil
	}
	if !previous.CanTransitionTo(status) {
		return alert.Clone(), previous, &TransitionError{ID: id, From: previous, To: status}
	}

	now := r.now()
	alert.Status = status
	alert.UpdatedAt = now
	if status == models.StatusAcknowledged {
		alert.AcknowledgedAt = &now
	}
	return alert.Clone(), previous, nil
}

func (r *MemoryAlertRepository) Get(id string) (models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	alert, ok := r.alerts[id]
	if !ok {
		return models.Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return alert.Clone(), nil
}

func (r *MemoryAlertRepository) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.alerts[id]
	return ok
}

func (r *MemoryAlertRepository) List() iter.Seq[models.Alert] {
	return func(yield func(models.Alert) bool) {
		for _, alert := range r.Snapshot() {
			if !yield(alert) {
				return
			}
		}
	}
}

// Snapshot copies the current collection, most recently inserted first.
func (r *MemoryAlertRepository) Snapshot() []models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Alert, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.alerts[r.order[i]].Clone())
	}
	return out
}

func (r *MemoryAlertRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alerts)
}

// CheckHealth always succeeds; the store has no external dependency.
func (r *MemoryAlertRepository) CheckHealth() error {
	return nil
}

func validate(alert models.Alert) error {
	switch {
	case alert.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidAlert)
	case math.IsNaN(alert.Confidence) || alert.Confidence < 0 || alert.Confidence > 1:
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidAlert, alert.Confidence)
	case !alert.Severity.Valid():
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidAlert, alert.Severity)
	case !alert.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidAlert, alert.Status)
	}
	return nil
}
