package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false, Exporter: "bogus"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_UnknownExporter(t *testing.T) {
	_, err := InitTracer(context.Background(), Config{Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "unsupported trace exporter")
}

func TestInitTracer_Jaeger(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{
		Enabled:     true,
		ServiceName: "huddle-test",
		Environment: "test",
		Exporter:    ExporterJaeger,
		Endpoint:    "http://127.0.0.1:1/api/traces",
	})
	require.NoError(t, err)

	_, span := GetTracer("test").Start(context.Background(), "span")
	span.End()

	// the collector is unreachable; shutdown may report the export failure
	_ = shutdown(context.Background())
}
