package testutil

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	spanOnce     sync.Once
	spanRecorder *tracetest.SpanRecorder
)

// RecordSpans installs an in-memory tracer provider for the test binary and
// returns its recorder. Every test in the binary shares it, so look spans up
// by an attribute unique to the test.
func RecordSpans() *tracetest.SpanRecorder {
	spanOnce.Do(func() {
		spanRecorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder)))
	})
	return spanRecorder
}

// FindSpan returns the first ended span called name whose attribute key
// equals value, or nil
func FindSpan(rec *tracetest.SpanRecorder, name string, key attribute.Key, value string) sdktrace.ReadOnlySpan {
	for _, span := range rec.Ended() {
		if span.Name() != name {
			continue
		}
		for _, kv := range span.Attributes() {
			if kv.Key == key && kv.Value.Emit() == value {
				return span
			}
		}
	}
	return nil
}
