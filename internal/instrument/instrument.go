package instrument

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one span or business event row, flushed to the _events table.
type Event struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	EventType    string // "span" or "business"
	Source       string
	Component    string
	Action       string
	Entity       string
	RecordID     string
	UserID       string
	DurationMs   int64
	Status       string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Span records timing and outcome for one unit of work.
type Span interface {
	End()
	SetStatus(status string)
	SetMetadata(key string, value any)
	SetEntity(entity, recordID string)
	TraceID() string
	SpanID() string
}

// Instrumenter creates spans and emits business events.
type Instrumenter interface {
	StartSpan(ctx context.Context, source, component, action string) (context.Context, Span)
	EmitBusinessEvent(ctx context.Context, action, entity, recordID string, metadata map[string]any)
}

type ctxKey int

const (
	instrumenterKey ctxKey = iota
	spanKey
)

// WithInstrumenter attaches an instrumenter to the context.
func WithInstrumenter(ctx context.Context, inst Instrumenter) context.Context {
	return context.WithValue(ctx, instrumenterKey, inst)
}

// GetInstrumenter returns the context's instrumenter, or a noop.
func GetInstrumenter(ctx context.Context) Instrumenter {
	if inst, ok := ctx.Value(instrumenterKey).(Instrumenter); ok {
		return inst
	}
	return &NoopInstrumenter{}
}

// DBInstrumenter enqueues spans into an EventBuffer for batch insertion.
type DBInstrumenter struct {
	buffer *EventBuffer
}

func NewDBInstrumenter(buffer *EventBuffer) *DBInstrumenter {
	return &DBInstrumenter{buffer: buffer}
}

func (d *DBInstrumenter) StartSpan(ctx context.Context, source, component, action string) (context.Context, Span) {
	s := &dbSpan{
		buffer: d.buffer,
		start:  time.Now(),
		event: Event{
			TraceID:   uuid.New().String(),
			SpanID:    uuid.New().String(),
			EventType: "span",
			Source:    source,
			Component: component,
			Action:    action,
			Status:    "ok",
			Metadata:  map[string]any{},
		},
	}
	if parent, ok := ctx.Value(spanKey).(*dbSpan); ok {
		s.event.TraceID = parent.event.TraceID
		s.event.ParentSpanID = parent.event.SpanID
	}
	return context.WithValue(ctx, spanKey, s), s
}

func (d *DBInstrumenter) EmitBusinessEvent(ctx context.Context, action, entity, recordID string, metadata map[string]any) {
	e := Event{
		TraceID:   uuid.New().String(),
		SpanID:    uuid.New().String(),
		EventType: "business",
		Source:    "api",
		Action:    action,
		Entity:    entity,
		RecordID:  recordID,
		Status:    "ok",
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if parent, ok := ctx.Value(spanKey).(*dbSpan); ok {
		e.TraceID = parent.event.TraceID
		e.ParentSpanID = parent.event.SpanID
	}
	d.buffer.Enqueue(e)
}

type dbSpan struct {
	buffer *EventBuffer
	start  time.Time
	event  Event
}

func (s *dbSpan) End() {
	s.event.DurationMs = time.Since(s.start).Milliseconds()
	s.event.CreatedAt = time.Now().UTC()
	s.buffer.Enqueue(s.event)
}

func (s *dbSpan) SetStatus(status string) { s.event.Status = status }

func (s *dbSpan) SetMetadata(key string, value any) { s.event.Metadata[key] = value }

func (s *dbSpan) SetEntity(entity, recordID string) {
	s.event.Entity = entity
	s.event.RecordID = recordID
}

func (s *dbSpan) TraceID() string { return s.event.TraceID }
func (s *dbSpan) SpanID() string  { return s.event.SpanID }
