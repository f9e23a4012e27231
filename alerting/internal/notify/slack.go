package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/config"
	"weaponwatch/alerting/internal/metrics"
	"weaponwatch/alerting/internal/models"
)

// Notifier dispatches an accepted alert to responders. It reports whether the
// alert was actually delivered.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) (bool, error)
}

type SlackNotifier struct {
	client   *slack.Client
	channels map[string]string
	breaker  *CircuitBreaker
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewSlackNotifier(ctx context.Context, cfg config.SlackConfig, token string, breaker *CircuitBreaker,
	m *metrics.Metrics, logger *zap.Logger, opts ...slack.Option) (*SlackNotifier, error) {

	if !strings.HasPrefix(token, "xoxb-") {
		return nil, errors.New("SLACK_BOT_TOKEN must be a bot token (xoxb-)")
	}

	api := slack.New(token, opts...)
	if _, err := api.AuthTestContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to authenticate with Slack: %w", err)
	}

	logger.Info("Connected to Slack", zap.Int("channels", len(cfg.Channels)))

	return &SlackNotifier{
		client:   api,
		channels: cfg.Channels,
		breaker:  breaker,
		metrics:  m,
		logger:   logger,
	}, nil
}

func (n *SlackNotifier) Notify(ctx context.Context, alert models.Alert) (bool, error) {
	if !ShouldNotify(alert.Severity) {
		n.metrics.IncSlackNotifications("skipped")
		return false, nil
	}

	channel := GetChannelForSeverity(alert.Severity, n.channels)
	message := FormatMessage(alert)

	err := n.breaker.Execute(func() error {
		_, _, err := n.client.PostMessageContext(ctx, channel, slack.MsgOptionText(message, false))
		return err
	})
	if err != nil {
		n.metrics.IncSlackNotifications("failure")
		return false, fmt.Errorf("slack notification for alert %s: %w", alert.ID, err)
	}

	n.metrics.IncSlackNotifications("success")
	n.logger.Debug("Sent alert to Slack", zap.String("alert_id", alert.ID), zap.String("channel", channel))
	return true, nil
}

func FormatMessage(alert models.Alert) string {
	location := alert.Location
	if location == "" {
		location = "unknown"
	}
	return fmt.Sprintf(
		"🚨 *%s weapon alert*\n"+
			"*ID:* %s\n"+
			"*Weapon:* %s (%.0f%%)\n"+
			"*Camera:* %s\n"+
			"*Location:* %s\n"+
			"*Detected:* %s",
		strings.ToUpper(string(alert.Severity)),
		alert.ID,
		alert.Weapon,
		alert.Confidence*100,
		alert.Camera,
		location,
		alert.Timestamp.UTC().Format(time.RFC3339),
	)
}
