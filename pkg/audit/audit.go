package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types emitted by the scheduling and reservation core.
const (
	EventPriorityUpdated      = "priority_updated"
	EventJobScheduled         = "job_scheduled"
	EventJobPreemption        = "job_preemption"
	EventConflictDetected     = "conflict_detected"
	EventConflictResolved     = "conflict_resolved"
	EventReservationCancelled = "reservation_cancelled"
	EventReservationPreempted = "reservation_preempted"
	EventMaintenanceScheduled = "maintenance_scheduled"
	EventMaintenanceCancelled = "maintenance_cancelled"
)

// Event is a single audit trail entry.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger receives audit events. Implementations must be safe for concurrent
// use; the scheduler and reservation manager call LogEvent while holding
// their own locks.
type Logger interface {
	LogEvent(eventType, message string, metadata map[string]any)
}

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(eventType, message string, metadata map[string]any) Event {
	return Event{
		ID:        "evt-" + uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Message:   message,
		Metadata:  metadata,
	}
}

// ZerologSink writes audit events to a zerolog logger.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink creates a sink writing to the given logger.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// LogEvent implements Logger.
func (s *ZerologSink) LogEvent(eventType, message string, metadata map[string]any) {
	evt := s.logger.Info().Str("event_type", eventType)
	for k, v := range metadata {
		evt = evt.Interface(k, v)
	}
	evt.Msg(message)
}

// Recorder keeps audit events in memory. Used by tests and dashboard query
// surfaces.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// LogEvent implements Logger.
func (r *Recorder) LogEvent(eventType, message string, metadata map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NewEvent(eventType, message, metadata))
}

// Events returns a copy of all recorded events in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsOfType returns recorded events matching the given type.
func (r *Recorder) EventsOfType(eventType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Fanout duplicates every event to all wrapped loggers.
type Fanout []Logger

// LogEvent implements Logger.
func (f Fanout) LogEvent(eventType, message string, metadata map[string]any) {
	for _, l := range f {
		l.LogEvent(eventType, message, metadata)
	}
}

// Nop discards all events.
type Nop struct{}

// LogEvent implements Logger.
func (Nop) LogEvent(string, string, map[string]any) {}
