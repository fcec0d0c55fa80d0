// internal/common/observability/tracing_test.go
package observability

import (
	"context"
	"testing"

	"application-wizard/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_Disabled(t *testing.T) {
	var o *Observability
	ctx, span := o.StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	o = &Observability{}
	require.NoError(t, o.EnableTracing("svc", config.TracingConfig{Enabled: false}))
	_, span = o.StartSpan(context.Background(), "noop")
	assert.False(t, span.IsRecording())
}

func TestStartSpan_Records(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	o := &Observability{}
	require.NoError(t, o.EnableTracing("svc", config.TracingConfig{Enabled: true, SampleRatio: 1}, sdktrace.WithSpanProcessor(rec)))
	defer o.Shutdown()

	ctx, parent := o.StartSpan(context.Background(), "wizard.next", attribute.String("flow", "credit"))
	_, child := o.StartSpan(ctx, "state.push")
	child.End()
	parent.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "state.push", spans[0].Name())
	assert.Equal(t, "wizard.next", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].Parent().TraceID())
	assert.Contains(t, spans[1].Attributes(), attribute.String("flow", "credit"))
}
