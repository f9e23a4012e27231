package tracing

import (
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/config"
)

// Init installs the global tracer. When tracing is disabled a noop tracer is
// installed so span calls elsewhere stay unconditional.
func Init(cfg config.TracingConfig, logger *zap.Logger) (opentracing.Tracer, func(), error) {
	if !cfg.Enabled {
		tracer := opentracing.NoopTracer{}
		opentracing.SetGlobalTracer(tracer)
		return tracer, func() {}, nil
	}

	jcfg := jaegercfg.Configuration{
		ServiceName: cfg.ServiceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeProbabilistic,
			Param: cfg.SampleRate,
		},
		Reporter: &jaegercfg.ReporterConfig{
			CollectorEndpoint: cfg.CollectorEndpoint,
		},
	}

	tracer, closer, err := jcfg.NewTracer(
		jaegercfg.Logger(zapLogger{logger.Sugar()}),
		jaegercfg.Metrics(metrics.NullFactory),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot initialize jaeger tracer for %s: %w", cfg.ServiceName, err)
	}

	opentracing.SetGlobalTracer(tracer)
	logger.Info("Jaeger tracer initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("collector", cfg.CollectorEndpoint))

	return tracer, func() { closer.Close() }, nil
}

// zapLogger satisfies jaeger.Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Error(msg string) {
	l.s.Error(msg)
}

func (l zapLogger) Infof(msg string, args ...interface{}) {
	l.s.Infof(msg, args...)
}
