package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher hands events to the background worker. Emission never blocks the
// migration hot path: when the inbox is full the event is dropped and
// counted, trading audit completeness for forward progress.
type Publisher struct {
	inbox   chan Event
	dropped func()
}

// NewPublisher creates a publisher with a buffered inbox feeding a Worker.
// onDrop, when non-nil, is called once per dropped event.
func NewPublisher(buffer int, onDrop func()) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{inbox: make(chan Event, buffer), dropped: onDrop}
}

// Inbox is the channel a Worker consumes.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }

// Emit queues an event, stamping id and timestamp when unset.
func (p *Publisher) Emit(_ context.Context, e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case p.inbox <- e:
	default:
		if p.dropped != nil {
			p.dropped()
		}
	}
}

// Close stops accepting events; the worker drains what was queued.
func (p *Publisher) Close() { close(p.inbox) }
