package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"weaponwatch/alerting/internal/models"
)

// StatusSetter applies a camera status reported by telemetry.
type StatusSetter interface {
	SetStatus(id string, status models.CameraStatus, at time.Time) error
}

// CameraStatusSubscriber applies messages published on
// cameras/<id>/status to the camera roster. The payload is either a bare
// status word or {"status": "..."}.
type CameraStatusSubscriber struct {
	cameras StatusSetter
	logger  *zap.Logger
	now     func() time.Time
}

func NewCameraStatusSubscriber(cameras StatusSetter, logger *zap.Logger) *CameraStatusSubscriber {
	return &CameraStatusSubscriber{cameras: cameras, logger: logger, now: time.Now}
}

// Subscribe attaches the subscriber to an MQTT client.
func (s *CameraStatusSubscriber) Subscribe(client *Client, topic string, qos byte) error {
	return client.Subscribe(topic, qos, s.HandleMessage)
}

func (s *CameraStatusSubscriber) HandleMessage(topic string, payload []byte) error {
	id, err := cameraIDFromTopic(topic)
	if err != nil {
		return err
	}
	status, err := parseStatus(payload)
	if err != nil {
		return fmt.Errorf("camera %s: %w", id, err)
	}
	if err := s.cameras.SetStatus(id, status, s.now()); err != nil {
		return err
	}
	s.logger.Debug("Camera status updated", zap.String("camera_id", id), zap.String("status", string(status)))
	return nil
}

func cameraIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "cameras" || parts[2] != "status" || parts[1] == "" {
		return "", fmt.Errorf("unexpected camera status topic %q", topic)
	}
	return parts[1], nil
}

func parseStatus(payload []byte) (models.CameraStatus, error) {
	raw := string(bytes.TrimSpace(payload))
	if strings.HasPrefix(raw, "{") {
		var body struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return "", fmt.Errorf("invalid status payload: %w", err)
		}
		raw = body.Status
	}
	status := models.CameraStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown camera status %q", raw)
	}
	return status, nil
}
