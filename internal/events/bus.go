// Package events keeps a bounded, sequenced history of status snapshots per
// request so HTTP clients can read a job's progress incrementally.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

const (
	DefaultMaxEvents = 100
	DefaultMaxJobs   = 1000
)

// Event is one sequenced status snapshot.
type Event struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	Status    models.JobStatus `json:"status"`
}

type stream struct {
	nextSeq int64
	events  []Event
}

// Bus stores recent events per request and provides incremental reads.
// Sequences are per request and start at 1.
type Bus struct {
	mu        sync.RWMutex
	maxEvents int
	maxJobs   int
	streams   map[uuid.UUID]*stream
	order     []uuid.UUID
}

// NewBus creates a bus keeping at most maxEvents per request and maxJobs
// requests. The oldest request is evicted first.
func NewBus(maxEvents, maxJobs int) *Bus {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}
	return &Bus{
		maxEvents: maxEvents,
		maxJobs:   maxJobs,
		streams:   make(map[uuid.UUID]*stream),
	}
}

// Append records status and returns the stored event.
func (b *Bus) Append(status models.JobStatus) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[status.RequestID]
	if !ok {
		s = &stream{}
		b.streams[status.RequestID] = s
		b.order = append(b.order, status.RequestID)
		b.evict()
	}

	s.nextSeq++
	ev := Event{Seq: s.nextSeq, Timestamp: status.UpdatedAt, Status: status}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	s.events = append(s.events, ev)
	if len(s.events) > b.maxEvents {
		trim := len(s.events) - b.maxEvents
		s.events = append([]Event(nil), s.events[trim:]...)
	}
	return ev
}

// Publish lets the bus serve as a status sink.
func (b *Bus) Publish(_ context.Context, status models.JobStatus) error {
	b.Append(status)
	return nil
}

// Since returns the request's events with sequence strictly greater than seq.
// ok is false when the request is unknown.
func (b *Bus) Since(id uuid.UUID, seq int64) (events []Event, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.streams[id]
	if !ok {
		return nil, false
	}
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out, true
}

// Forget drops the request's history.
func (b *Bus) Forget(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.streams[id]; !ok {
		return
	}
	delete(b.streams, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// evict must be called with mu held.
func (b *Bus) evict() {
	for len(b.order) > b.maxJobs {
		delete(b.streams, b.order[0])
		b.order = b.order[1:]
	}
}
