package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/bippobippo/hospital-vectors/pkg/config"
)

func restoreGlobals(t *testing.T) {
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	restoreGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "x"})
	require.NoError(t, err)
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_ExportsSpans(t *testing.T) {
	restoreGlobals(t)
	exp := tracetest.NewInMemoryExporter()

	shutdown, err := Setup(context.Background(), config.TelemetryConfig{ServiceName: "hospital-embed"}, WithExporter(exp))
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "batch")
	span.End()
	// the in-memory exporter drops its spans on shutdown
	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(context.Background()))
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "batch", spans[0].Name)
	v, ok := spans[0].Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "hospital-embed", v.AsString())
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "otel:4317", stripScheme("http://otel:4317"))
	assert.Equal(t, "otel:4317", stripScheme("https://otel:4317"))
	assert.Equal(t, "otel:4317", stripScheme("otel:4317"))
}
