package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventSpawn     EventType = "spawn"
	EventStopSent  EventType = "stop_sent"
	EventEscalated EventType = "escalated"
	EventKilled    EventType = "killed"
	EventExited    EventType = "exited"
	EventCrashed   EventType = "crashed"
)

// Event is one recorded lifecycle occurrence of the supervised server.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Forced     bool      `json:"forced,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// NewEvent builds an event with a fresh ID and UTC timestamp.
func NewEvent(t EventType) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

// Sink is a destination for lifecycle events. Implementations must be
// safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Fanout forwards each event to every configured sink. A nil sink is
// skipped; a failing sink does not prevent delivery to the others.
type Fanout []Sink

func (f Fanout) Send(ctx context.Context, e Event) error {
	var first error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) Close() error {
	var first error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
