package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/metrics"
	"weaponwatch/alerting/internal/models"
	"weaponwatch/alerting/internal/notify"
	"weaponwatch/alerting/internal/repository"
)

// CriticalThreshold is the confidence above which a detection is critical.
const CriticalThreshold = 0.8

const notifyTimeout = 10 * time.Second

// EventPublisher receives alert lifecycle events. Publishing must not block
// for long; failures are logged and never undo a committed change.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event models.AlertEvent) error
}

// Pipeline is the single gate through which candidates from every source
// become alerts.
type Pipeline struct {
	repo       repository.AlertRepository
	cameras    repository.CameraRegistry
	notifier   notify.Notifier
	publishers []EventPublisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Pipeline)

func WithNotifier(n notify.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

func WithPublishers(pubs ...EventPublisher) Option {
	return func(p *Pipeline) { p.publishers = append(p.publishers, pubs...) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(repo repository.AlertRepository, cameras repository.CameraRegistry, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		repo:    repo,
		cameras: cameras,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DeriveID builds the alert id from the candidate's origin.
func DeriveID(source, sourceID string) string {
	return source + "-" + sourceID
}

// AssignSeverity maps a candidate to its urgency tier.
func AssignSeverity(c models.Candidate) models.Severity {
	if c.Manual {
		return models.SeverityInfo
	}
	if c.Confidence > CriticalThreshold {
		return models.SeverityCritical
	}
	return models.SeverityWarning
}

// Ingest commits a candidate as a pending alert. It returns false without an
// error when the candidate duplicates an existing alert.
func (p *Pipeline) Ingest(ctx context.Context, c models.Candidate) (models.Alert, bool, error) {
	start := time.Now()
	span, ctx := opentracing.StartSpanFromContext(ctx, "ingest-candidate")
	defer span.Finish()
	span.SetTag("source", c.Source)
	span.SetTag("source_id", c.SourceID)

	if c.SourceID == "" {
		span.SetTag("error", true)
		return models.Alert{}, false, fmt.Errorf("%w: candidate from %s has no source id", repository.ErrInvalidAlert, c.Source)
	}

	id := DeriveID(c.Source, c.SourceID)
	if p.repo.Exists(id) {
		p.dropDuplicate(id, c.Source)
		return models.Alert{}, false, nil
	}

	now := p.now()
	alert := models.Alert{
		ID:         id,
		Source:     c.Source,
		SourceID:   c.SourceID,
		Timestamp:  c.Timestamp,
		Camera:     c.Camera,
		Location:   c.Location,
		Weapon:     c.Weapon,
		Confidence: c.Confidence,
		Severity:   AssignSeverity(c),
		Status:     models.StatusPending,
		BBox:       c.BBox,
		CreatedAt:  now,
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = now
	}
	if alert.Location == "" && p.cameras != nil {
		if loc, ok := p.cameras.Location(alert.Camera); ok {
			alert.Location = loc
		}
	}

	if err := p.repo.Insert(alert); err != nil {
		if errors.Is(err, repository.ErrDuplicateID) {
			p.dropDuplicate(id, c.Source)
			return models.Alert{}, false, nil
		}
		span.SetTag("error", true)
		return models.Alert{}, false, fmt.Errorf("insert alert %s: %w", id, err)
	}

	stored, err := p.repo.Get(id)
	if err == nil {
		alert = stored
	}

	if p.cameras != nil && p.cameras.MarkAlert(alert.Camera, now) {
		p.logger.Info("Camera switched to alert", zap.String("camera", alert.Camera))
	}

	p.metrics.IncAlertsCreated(string(alert.Severity), alert.Source)
	p.logger.Info("Alert created",
		zap.String("alert_id", alert.ID),
		zap.String("severity", string(alert.Severity)),
		zap.String("weapon", alert.Weapon),
		zap.Float64("confidence", alert.Confidence),
		zap.String("camera", alert.Camera))

	p.publish(ctx, models.AlertEvent{Type: models.EventAlertCreated, Alert: alert, OccurredAt: now})
	p.refreshPending()
	p.dispatch(ctx, alert)

	p.metrics.SetAlertProcessingTime(time.Since(start).Seconds())
	return alert, true, nil
}

// Report commits an operator-entered alert.
func (p *Pipeline) Report(ctx context.Context, req models.CreateAlertRequest) (models.Alert, error) {
	c := models.Candidate{
		Source:   models.SourceManual,
		SourceID: uuid.NewString(),
		Weapon:   req.Weapon,
		Camera:   req.Camera,
		Location: req.Location,
		Manual:   true,
	}
	if req.Confidence != nil {
		c.Confidence = *req.Confidence
	}
	if req.Timestamp != nil {
		c.Timestamp = *req.Timestamp
	}

	alert, _, err := p.Ingest(ctx, c)
	return alert, err
}

// UpdateStatus applies a lifecycle transition and announces it.
func (p *Pipeline) UpdateStatus(ctx context.Context, id string, status models.Status) (models.Alert, error) {
	alert, previous, err := p.repo.UpdateStatus(id, status)
	if err != nil {
		return alert, err
	}
	if previous == alert.Status {
		return alert, nil
	}

	p.metrics.IncStatusTransition(string(previous), string(alert.Status))
	p.logger.Info("Alert status changed",
		zap.String("alert_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(alert.Status)))

	p.publish(ctx, models.AlertEvent{
		Type:           models.EventAlertStatusChanged,
		Alert:          alert,
		PreviousStatus: previous,
		OccurredAt:     p.now(),
	})
	p.refreshPending()
	return alert, nil
}

// Wait blocks until in-flight notifications have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close stops dispatching notifications and waits for the in-flight ones.
// Alerts ingested afterwards are still stored and stay pending.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pipeline) dispatch(ctx context.Context, alert models.Alert) {
	if p.notifier == nil || !notify.ShouldNotify(alert.Severity) {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Debug("Pipeline closed, notification skipped", zap.String("alert_id", alert.ID))
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		delivered, err := p.notifier.Notify(nctx, alert)
		if err != nil {
			p.logger.Warn("Notification failed, alert stays pending",
				zap.String("alert_id", alert.ID), zap.Error(err))
			return
		}
		if !delivered {
			return
		}
		// The alert may have been acknowledged meanwhile; that is not an error.
		if _, err := p.UpdateStatus(nctx, alert.ID, models.StatusSent); err != nil &&
			!errors.Is(err, repository.ErrIllegalTransition) {
			p.logger.Warn("Could not mark alert as sent", zap.String("alert_id", alert.ID), zap.Error(err))
		}
	}()
}

func (p *Pipeline) publish(ctx context.Context, event models.AlertEvent) {
	for _, pub := range p.publishers {
		if err := pub.PublishEvent(ctx, event); err != nil {
			p.logger.Warn("Failed to publish alert event",
				zap.String("type", event.Type),
				zap.String("alert_id", event.Alert.ID),
				zap.Error(err))
		}
	}
}

func (p *Pipeline) dropDuplicate(id, source string) {
	p.metrics.IncDuplicatesDropped(source)
	p.logger.Debug("Duplicate candidate dropped", zap.String("alert_id", id))
}

func (p *Pipeline) refreshPending() {
	if p.metrics == nil {
		return
	}
	pending := 0
	for a := range p.repo.List() {
		if a.Status == models.StatusPending {
			pending++
		}
	}
	p.metrics.SetPendingAlerts(float64(pending))
}
