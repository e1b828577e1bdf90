// Package telemetry is the runtime generated decorators and interceptors
// report to. A Source names the instrumented module; each traced call opens
// a Span on it.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Source
type Option func(*Source)

// WithTracerProvider reports to tp instead of the global provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Source) { s.provider = tp }
}

// WithAttributes adds attributes to every span of the source
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(s *Source) { s.attrs = append(s.attrs, attrs...) }
}

// WithMetrics records a call counter and a duration histogram per span name
// on reg. Sources sharing a registerer share the collectors.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Source) { s.metrics = newCallMetrics(reg) }
}

// Source starts spans for one instrumented module
type Source struct {
	name     string
	version  string
	provider trace.TracerProvider
	tracer   trace.Tracer
	attrs    []attribute.KeyValue
	metrics  *callMetrics
}

// NewSource creates a source named after a module. Without
// WithTracerProvider it follows the global provider, including one
// installed after the source was created.
func NewSource(name, version string, opts ...Option) *Source {
	s := &Source{name: name, version: version}
	for _, opt := range opts {
		opt(s)
	}
	if s.provider == nil {
		s.provider = otel.GetTracerProvider()
	}
	s.tracer = s.provider.Tracer(name, trace.WithInstrumentationVersion(version))
	return s
}

// Name returns the instrumentation name
func (s *Source) Name() string { return s.name }

// Version returns the instrumentation version
func (s *Source) Version() string { return s.version }

// TracerProvider returns the provider spans are started on
func (s *Source) TracerProvider() trace.TracerProvider { return s.provider }

// Start opens a span as a child of the one in ctx and returns the context
// carrying it
func (s *Source) Start(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(s.attrs...))
	return ctx, &Span{source: s, span: span, name: name, start: time.Now()}
}

// StartDetached opens a root span for calls that carry no context
func (s *Source) StartDetached(name string) *Span {
	_, span := s.Start(context.Background(), name)
	return span
}

// Span is one traced call
type Span struct {
	source *Source
	span   trace.Span
	name   string
	start  time.Time
	err    error
	ended  bool
}

// Fail records err on the span and marks it failed. A nil err is ignored.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// Failed reports whether Fail was called with an error
func (s *Span) Failed() bool {
	return s != nil && s.err != nil
}

// SetName renames the span
func (s *Span) SetName(name string) {
	if s == nil {
		return
	}
	s.name = name
	s.span.SetName(name)
}

// SetAttributes adds attributes to the span
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	if s == nil {
		return
	}
	s.span.SetAttributes(attrs...)
}

// Context returns the span's context for propagation
func (s *Span) Context() trace.SpanContext {
	if s == nil {
		return trace.SpanContext{}
	}
	return s.span.SpanContext()
}

// End closes the span. The status becomes Ok unless Fail recorded an error.
// Only the first call has an effect.
func (s *Span) End() {
	if s == nil || s.ended {
		return
	}
	s.ended = true
	if s.err == nil {
		s.span.SetStatus(codes.Ok, "")
	}
	s.source.metrics.observe(s.source.name, s.name, s.err == nil, time.Since(s.start))
	s.span.End()
}

// TypeName returns the name of t for span names. Pointers are named after
// their element type.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// ErrPanic wraps panic values that are not errors
var ErrPanic = errors.New("panic")

// Recovered converts a recovered panic value into the error recorded on
// the span. Error values are returned as they are.
func Recovered(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPanic, v)
}
