package kafka

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"weaponwatch/alerting/internal/models"
)

const (
	ContentTypeProtobuf = "application/x-protobuf"
	ContentTypeJSON     = "application/json"
)

// EncodeEvent serializes an alert event as a protobuf Struct.
func EncodeEvent(event models.AlertEvent) ([]byte, error) {
	fields, err := toMap(event)
	if err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build event struct: %w", err)
	}
	return proto.Marshal(s)
}

func DecodeEvent(data []byte) (models.AlertEvent, error) {
	var event models.AlertEvent
	if err := decodeStruct(data, &event); err != nil {
		return models.AlertEvent{}, err
	}
	return event, nil
}

// Detection is the payload edge detectors publish on the detections topic.
type Detection struct {
	ID         string  `json:"id"`
	Weapon     string  `json:"weapon"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
	Camera     string  `json:"camera"`
	Location   string  `json:"location,omitempty"`
}

// DecodeDetection reads a detection encoded either as JSON or as a protobuf
// Struct, as indicated by contentType.
func DecodeDetection(data []byte, contentType string) (Detection, error) {
	var d Detection
	if contentType == ContentTypeProtobuf {
		if err := decodeStruct(data, &d); err != nil {
			return Detection{}, err
		}
		return d, nil
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return Detection{}, fmt.Errorf("decode detection: %w", err)
	}
	return d, nil
}

func EncodeDetection(d Detection) ([]byte, error) {
	fields, err := toMap(d)
	if err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build detection struct: %w", err)
	}
	return proto.Marshal(s)
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	return fields, nil
}

func decodeStruct(data []byte, out any) error {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal struct: %w", err)
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("re-encode struct: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}
