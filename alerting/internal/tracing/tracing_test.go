package tracing

import (
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/config"
)

func TestInitDisabledInstallsNoopTracer(t *testing.T) {
	tracer, closeFn, err := Init(config.TracingConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, opentracing.NoopTracer{}, tracer)
	assert.IsType(t, opentracing.NoopTracer{}, opentracing.GlobalTracer())
}

func TestInitEnabled(t *testing.T) {
	cfg := config.TracingConfig{
		Enabled:           true,
		ServiceName:       "weaponwatch-test",
		CollectorEndpoint: "http://127.0.0.1:14268/api/traces",
		SampleRate:        1,
	}
	tracer, closeFn, err := Init(cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	defer opentracing.SetGlobalTracer(opentracing.NoopTracer{})

	span := tracer.StartSpan("test-span")
	span.Finish()
	assert.NotNil(t, span.Context())
}
