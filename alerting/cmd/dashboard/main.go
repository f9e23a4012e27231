package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"weaponwatch/alerting/internal/config"
	"weaponwatch/alerting/internal/frames"
	"weaponwatch/alerting/internal/handlers"
	"weaponwatch/alerting/internal/hoststats"
	"weaponwatch/alerting/internal/ingest"
	"weaponwatch/alerting/internal/kafka"
	"weaponwatch/alerting/internal/logger"
	"weaponwatch/alerting/internal/metrics"
	"weaponwatch/alerting/internal/notify"
	"weaponwatch/alerting/internal/repository"
	"weaponwatch/alerting/internal/server"
	"weaponwatch/alerting/internal/sources"
	"weaponwatch/alerting/internal/telemetry"
	"weaponwatch/alerting/internal/tracing"
	"weaponwatch/alerting/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "weaponwatch-dashboard")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := 0
	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Error("Dashboard stopped with error", zap.Error(err))
		code = 1
	}
	stop()
	_ = zlog.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, zlog *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	_, closeTracer, err := tracing.Init(cfg.Tracing, zlog)
	if err != nil {
		return err
	}
	defer closeTracer()

	started := time.Now()
	m := metrics.NewMetrics()
	repo := repository.NewMemoryAlertRepository()
	cameras := repository.NewCameraRegistry(cfg.Cameras, started)

	hub := websocket.NewHub(zlog)
	go hub.Run(ctx)

	publishers := []ingest.EventPublisher{hub}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, zlog)
		defer producer.Close()
		publishers = append(publishers, producer)
	}

	opts := []ingest.Option{ingest.WithMetrics(m), ingest.WithPublishers(publishers...)}
	if cfg.Slack.Enabled {
		breaker := notify.NewCircuitBreaker(cfg.Slack.CircuitBreaker, m, zlog)
		notifier, err := notify.NewSlackNotifier(ctx, cfg.Slack, config.GetSlackToken(), breaker, m, zlog)
		if err != nil {
			zlog.Warn("Slack notifications disabled", zap.Error(err))
		} else {
			opts = append(opts, ingest.WithNotifier(notifier))
		}
	}
	pipeline := ingest.NewPipeline(repo, cameras, zlog, opts...)
	defer pipeline.Close()

	var relay ingest.AckRelay
	if cfg.Backend.Enabled {
		client := sources.NewRemoteClient(cfg.Backend.URL, cfg.Backend.Timeout, zlog)
		poller := sources.NewRemotePoller(client, cfg.Webcam.Camera, cfg.Webcam.Location, zlog)
		relay = poller
		runner := sources.NewRunner(poller, pipeline, cfg.Backend.PollInterval, zlog,
			sources.WithBackoff(cfg.Backend.BackoffMax), sources.WithRunnerMetrics(m))
		runner.Start(ctx)
		defer runner.Stop()
	}

	if cfg.Simulator.Enabled {
		runner := sources.NewRunner(sources.NewSimulator(cfg.Simulator, cameras), pipeline, cfg.Simulator.Interval, zlog,
			sources.WithRunnerMetrics(m))
		runner.Start(ctx)
		defer runner.Stop()
	}

	if cfg.Kafka.Enabled && cfg.Kafka.DetectionsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.DetectionsTopic, cfg.Kafka.GroupID, zlog)
		defer consumer.Close()
		feed := sources.NewKafkaFeed(consumer, pipeline, zlog)
		feedDone := make(chan struct{})
		go func() {
			defer close(feedDone)
			if err := feed.Run(ctx); err != nil {
				zlog.Error("Kafka detection feed stopped", zap.Error(err), zap.String("feed", feed.Name()))
			}
		}()
		// The feed must be idle before the pipeline is closed.
		defer func() {
			cancel()
			<-feedDone
		}()
	}

	if cfg.Mqtt.Enabled {
		client, err := telemetry.NewClient(cfg.Mqtt, zlog)
		if err != nil {
			zlog.Warn("Camera telemetry disabled", zap.Error(err))
		} else {
			defer client.Disconnect()
			sub := telemetry.NewCameraStatusSubscriber(cameras, zlog)
			if err := sub.Subscribe(client, cfg.Mqtt.Topic, cfg.Mqtt.QoS); err != nil {
				zlog.Warn("Camera telemetry subscription failed", zap.Error(err))
			}
		}
	}

	loop := frames.NewLoop(cfg.Webcam, frames.WithMetrics(m))
	webcam := frames.NewController(ctx, loop,
		sources.NewRunner(loop, pipeline, cfg.Webcam.SampleInterval, zlog, sources.WithRunnerMetrics(m)))
	if cfg.Webcam.AutoStart {
		webcam.Start()
	}
	defer webcam.Stop()

	srv := server.New(server.Handlers{
		Alerts:    handlers.NewAlertHandler(repo, pipeline, ingest.NewAcknowledger(pipeline, relay, m, zlog), zlog),
		Health:    handlers.NewHealthHandler(repo, repo, hoststats.NewCollector("/", zlog), started),
		Cameras:   handlers.NewCameraHandler(cameras),
		Webcam:    handlers.NewWebcamHandler(webcam, cfg.Backend.StreamURL, zlog),
		WebSocket: handlers.NewWebSocketHandler(hub, zlog),
		Metrics:   m.Handler(),
	}, cfg.Http.Port, zlog)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
