package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"weaponwatch/alerting/internal/models"
)

// BaseTime is a fixed instant used by fixtures.
var BaseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func CreateCandidate(source string, confidence float64) models.Candidate {
	return models.Candidate{
		Source:     source,
		SourceID:   uuid.NewString(),
		Weapon:     "knife",
		Confidence: confidence,
		Timestamp:  BaseTime,
		Camera:     "Main Entrance",
	}
}

func CreateAlert(id string, severity models.Severity, status models.Status, confidence float64, ts time.Time) models.Alert {
	return models.Alert{
		ID:         id,
		Source:     models.SourceSimulator,
		SourceID:   id,
		Timestamp:  ts,
		Camera:     "Main Entrance",
		Location:   "Building A - Ground Floor",
		Weapon:     "knife",
		Confidence: confidence,
		Severity:   severity,
		Status:     status,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

// MixedAlerts returns ten alerts, newest first, spread over every severity
// and status.
func MixedAlerts() []models.Alert {
	severities := []models.Severity{
		models.SeverityCritical, models.SeverityWarning, models.SeverityInfo,
		models.SeverityWarning, models.SeverityCritical, models.SeverityInfo,
		models.SeverityCritical, models.SeverityWarning, models.SeverityWarning,
		models.SeverityCritical,
	}
	statuses := []models.Status{models.StatusPending, models.StatusSent, models.StatusAcknowledged}
	cameras := []string{"Main Entrance", "Parking Garage", "Lobby Security", "Emergency Exit"}
	weapons := []string{"knife", "gun"}

	alerts := make([]models.Alert, 0, len(severities))
	for i, sev := range severities {
		a := CreateAlert(
			fmt.Sprintf("alert-%02d", i),
			sev,
			statuses[i%len(statuses)],
			0.6+float64(i)*0.04,
			BaseTime.Add(-time.Duration(i)*time.Minute),
		)
		a.Camera = cameras[i%len(cameras)]
		a.Weapon = weapons[i%len(weapons)]
		alerts = append(alerts, a)
	}
	return alerts
}

// RecordingPublisher captures published alert events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []models.AlertEvent
	Err    error
}

func (p *RecordingPublisher) PublishEvent(_ context.Context, event models.AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

func (p *RecordingPublisher) Events() []models.AlertEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.AlertEvent, len(p.events))
	copy(out, p.events)
	return out
}

// StubNotifier records notified alerts and returns a fixed outcome. A non-nil
// Gate holds every call until it is closed.
type StubNotifier struct {
	mu        sync.Mutex
	notified  []string
	Delivered bool
	Err       error
	Gate      chan struct{}
}

func (n *StubNotifier) Notify(_ context.Context, alert models.Alert) (bool, error) {
	n.mu.Lock()
	n.notified = append(n.notified, alert.ID)
	n.mu.Unlock()

	if n.Gate != nil {
		<-n.Gate
	}
	if n.Err != nil {
		return false, n.Err
	}
	return n.Delivered, nil
}

func (n *StubNotifier) Notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notified...)
}
