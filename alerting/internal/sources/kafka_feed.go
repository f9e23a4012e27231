package sources

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/kafka"
	"weaponwatch/alerting/internal/models"
)

// KafkaFeed ingests detections that edge devices publish to Kafka. Unlike the
// scheduled sources it is push-driven: each message becomes one candidate.
type KafkaFeed struct {
	consumer *kafka.Consumer
	ingester Ingester
	logger   *zap.Logger
	now      func() time.Time
}

func NewKafkaFeed(consumer *kafka.Consumer, ingester Ingester, logger *zap.Logger) *KafkaFeed {
	return &KafkaFeed{
		consumer: consumer,
		ingester: ingester,
		logger:   logger.With(zap.String("source", models.SourceEdge)),
		now:      time.Now,
	}
}

func (f *KafkaFeed) Name() string {
	return models.SourceEdge
}

// Run consumes until ctx is cancelled.
func (f *KafkaFeed) Run(ctx context.Context) error {
	f.logger.Info("Kafka detection feed started")
	return f.consumer.Consume(ctx, f.Handle)
}

func (f *KafkaFeed) Handle(ctx context.Context, msg kafkago.Message) error {
	d, err := kafka.DecodeDetection(msg.Value, kafka.Header(msg, "content-type"))
	if err != nil {
		return err
	}

	sourceID := d.ID
	if sourceID == "" {
		sourceID = fmt.Sprintf("%d-%d", msg.Partition, msg.Offset)
	}
	ts, ok := parseTimestamp(d.Timestamp)
	if !ok {
		ts = msg.Time
	}
	if ts.IsZero() {
		ts = f.now()
	}

	_, accepted, err := f.ingester.Ingest(ctx, models.Candidate{
		Source:     models.SourceEdge,
		SourceID:   sourceID,
		Weapon:     d.Weapon,
		Confidence: d.Confidence,
		Timestamp:  ts,
		Camera:     d.Camera,
		Location:   d.Location,
	})
	if err != nil {
		return err
	}
	if accepted {
		f.logger.Debug("Edge detection accepted", zap.String("source_id", sourceID))
	}
	return nil
}
