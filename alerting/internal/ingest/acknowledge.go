package ingest

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/metrics"
	"weaponwatch/alerting/internal/models"
)

// AckRelay forwards an acknowledgement to the service an alert came from.
type AckRelay interface {
	Acknowledge(ctx context.Context, remoteID string) error
}

type AckResult struct {
	Alert     models.Alert
	Relayed   bool
	RemoteErr error
}

// Acknowledger acknowledges alerts locally and, for alerts that came from the
// remote detection service, relays the acknowledgement there first. A failed
// relay never blocks the local acknowledgement.
type Acknowledger struct {
	pipeline *Pipeline
	relay    AckRelay
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewAcknowledger(pipeline *Pipeline, relay AckRelay, m *metrics.Metrics, logger *zap.Logger) *Acknowledger {
	return &Acknowledger{pipeline: pipeline, relay: relay, metrics: m, logger: logger}
}

func (a *Acknowledger) Acknowledge(ctx context.Context, id string) (AckResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "acknowledge-alert")
	defer span.Finish()
	span.SetTag("alert_id", id)

	alert, err := a.pipeline.repo.Get(id)
	if err != nil {
		return AckResult{}, err
	}
	if alert.Status == models.StatusAcknowledged {
		return AckResult{Alert: alert}, nil
	}

	var result AckResult
	if alert.Source == models.SourceRemote && a.relay != nil {
		if err := a.relay.Acknowledge(ctx, alert.SourceID); err != nil {
			span.SetTag("relay_error", true)
			a.metrics.IncAckRelayFailures()
			a.logger.Warn("Remote acknowledge failed, acknowledging locally",
				zap.String("alert_id", id),
				zap.String("remote_id", alert.SourceID),
				zap.Error(err))
			result.RemoteErr = err
		} else {
			result.Relayed = true
		}
	}

	updated, err := a.pipeline.UpdateStatus(ctx, id, models.StatusAcknowledged)
	if err != nil {
		return result, err
	}
	result.Alert = updated
	return result, nil
}
