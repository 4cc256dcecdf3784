// Package trace provides lightweight distributed tracing for the SOCKS
// proxy core. Every span a session reports carries one of the five names
// spec.md §6 lists (SpanSessionAccept through SpanRelayCompleted),
// regardless of SOCKS version; a session that ends before a stage (a
// malformed frame, a denial, a failed connect) reports no span for that
// stage, and errors are recorded on the span where they occurred.
package trace

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Canonical span names for the five observability events spec.md §6
// requires every session to report. session_v4.go/session_v5.go and
// session_common.go's runTail never invent their own span names; they
// pick one of these.
const (
	SpanSessionAccept   = "session-accept"
	SpanHandshakeParsed = "handshake-parsed"
	SpanPolicyDecided   = "policy-decided"
	SpanTargetConnected = "target-connected"
	SpanRelayCompleted  = "relay-completed"
)

// SpanKind represents the type of span.
type SpanKind string

const (
	SpanKindClient   SpanKind = "client"
	SpanKindServer   SpanKind = "server"
	SpanKindInternal SpanKind = "internal"
)

// SpanStatus represents the completion status of a span.
type SpanStatus string

const (
	StatusOK        SpanStatus = "ok"
	StatusError     SpanStatus = "error"
	StatusCancelled SpanStatus = "cancelled"
)

type contextKey int

const spanContextKey contextKey = iota

// Span represents a single operation in a trace.
type Span struct {
	TraceID    string
	SpanID     string
	ParentID   string
	Name       string
	Kind       SpanKind
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Status     SpanStatus
	Attributes map[string]interface{}
	Events     []Event
	mu         sync.RWMutex
	exporter   Exporter
}

// Event represents a timestamped event within a span.
type Event struct {
	Timestamp  time.Time
	Name       string
	Attributes map[string]interface{}
}

// Tracer provides tracing functionality.
type Tracer struct {
	serviceName string
	exporter    Exporter
	sampler     Sampler
	mu          sync.RWMutex
}

// Exporter defines the interface for exporting spans.
type Exporter interface {
	Export(span *Span) error
	Close() error
}

// Sampler determines whether to create a trace.
type Sampler interface {
	ShouldSample(name string) bool
}

// NewTracer creates a new tracer instance.
func NewTracer(serviceName string, exporter Exporter, sampler Sampler) *Tracer {
	if sampler == nil {
		sampler = AlwaysSample()
	}
	return &Tracer{
		serviceName: serviceName,
		exporter:    exporter,
		sampler:     sampler,
	}
}

// StartSpan creates a new span and adds it to the context.
func (t *Tracer) StartSpan(ctx context.Context, name string, kind SpanKind) (context.Context, *Span) {
	if !t.sampler.ShouldSample(name) {
		return ctx, nil
	}

	span := &Span{
		TraceID:    generateID(),
		SpanID:     generateID(),
		Name:       name,
		Kind:       kind,
		StartTime:  time.Now(),
		Status:     StatusOK,
		Attributes: make(map[string]interface{}),
		Events:     make([]Event, 0),
		exporter:   t.exporter,
	}

	if parentSpan := FromContext(ctx); parentSpan != nil {
		span.TraceID = parentSpan.TraceID
		span.ParentID = parentSpan.SpanID
	}

	span.SetAttribute("service.name", t.serviceName)

	return context.WithValue(ctx, spanContextKey, span), span
}

// End completes the span and hands it to the exporter of the Tracer that
// started it.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	if s.exporter != nil {
		_ = s.exporter.Export(s)
	}
}

// SetStatus sets the span status.
func (s *Span) SetStatus(status SpanStatus, description string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	if description != "" {
		s.Attributes["status.description"] = description
	}
}

// SetAttribute sets a span attribute.
func (s *Span) SetAttribute(key string, value interface{}) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attributes[key] = value
}

// SetAttributes sets multiple span attributes at once.
func (s *Span) SetAttributes(attrs map[string]interface{}) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range attrs {
		s.Attributes[k] = v
	}
}

// AddEvent adds a timestamped event to the span.
func (s *Span) AddEvent(name string, attributes map[string]interface{}) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, Event{Timestamp: time.Now(), Name: name, Attributes: attributes})
}

// RecordError records an error in the span.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil {
		return
	}
	s.SetStatus(StatusError, err.Error())
	s.AddEvent("error", map[string]interface{}{
		"error.type":    fmt.Sprintf("%T", err),
		"error.message": err.Error(),
	})
}

// FromContext retrieves the span from context.
func FromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(spanContextKey).(*Span)
	return span
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// EndSpan ends a span, recording err if non-nil, and exports it if an
// exporter is given.
func EndSpan(span *Span, err error, exporter Exporter) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
	}
	span.End()
	if exporter != nil {
		_ = exporter.Export(span)
	}
}
