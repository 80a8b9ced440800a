package otel_test

import (
	"context"
	"errors"
	"roombook/infras/otel"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestScope(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := provider.Tracer("service").Start(context.Background(), "service.CreateBooking")
	scope := otel.NewScope(span)

	scope.SetAttributes(map[string]any{
		"booking.id":      "b-1",
		"booking.amount":  int64(15000),
		"booking.attempt": 2,
		"booking.replay":  false,
	})
	scope.TraceIfError(nil)
	scope.TraceIfError(errors.New("slot no longer available"))
	assert.NotEmpty(t, scope.TraceID())
	scope.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	got := spans[0]
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "slot no longer available", got.Status().Description)
	assert.Contains(t, got.Attributes(), attribute.Int64("booking.amount", 15000))
	assert.Contains(t, got.Attributes(), attribute.String("booking.id", "b-1"))
	assert.Contains(t, got.Attributes(), attribute.Bool("booking.replay", false))
}
