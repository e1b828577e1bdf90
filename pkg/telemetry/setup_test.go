package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	provider, propagator := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(propagator)
	})
}

func TestSetup_Stdout(t *testing.T) {
	restoreGlobals(t)

	var buf bytes.Buffer
	p, err := Setup(context.Background(), Config{ServiceName: "stats", ServiceVersion: "v1.2.0", Writer: &buf})
	require.NoError(t, err)
	_, err = uuid.Parse(p.InstanceID)
	require.NoError(t, err)

	src := NewSource("stats", "v1.2.0")
	_, span := src.Start(context.Background(), "Decorated.memProvider.Get")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	output := buf.String()
	assert.Contains(t, output, `"Name":"Decorated.memProvider.Get"`)
	assert.Contains(t, output, "service.instance.id")
	assert.Contains(t, output, p.InstanceID)
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestSetup_None(t *testing.T) {
	restoreGlobals(t)

	p, err := Setup(context.Background(), Config{ServiceName: "stats", Exporter: ExporterNone, SampleRatio: 0.5})
	require.NoError(t, err)
	assert.Same(t, p.TracerProvider, otel.GetTracerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_OTLP(t *testing.T) {
	restoreGlobals(t)

	p, err := Setup(context.Background(), Config{
		ServiceName: "stats",
		Exporter:    ExporterOTLP,
		Endpoint:    "127.0.0.1:4317",
		Insecure:    true,
	})
	require.NoError(t, err, "the exporter connects lazily")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestSetup_Errors(t *testing.T) {
	_, err := Setup(context.Background(), Config{})
	assert.EqualError(t, err, "service name is required")

	_, err = Setup(context.Background(), Config{ServiceName: "stats", Exporter: "zipkin"})
	assert.EqualError(t, err, `unknown exporter "zipkin"`)
}
