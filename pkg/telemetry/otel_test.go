package telemetry_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/Aidin1998/catalogue/internal/config"
	"github.com/Aidin1998/catalogue/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupExportsSpans(t *testing.T) {
	var out bytes.Buffer
	ctx := context.Background()
	shutdown, err := telemetry.Setup(ctx, config.TelemetryConfig{Tracing: true, ServiceName: "catalogue-test"}, &out)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "unit-of-work")
	span.End()

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, out.String(), "unit-of-work")
	assert.Contains(t, out.String(), "catalogue-test")
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), config.TelemetryConfig{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
