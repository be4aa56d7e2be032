// Package eventbus implements an in-process publish/subscribe fan-out:
// publish is non-blocking, each subscriber holds a bounded FIFO buffer,
// and buffer overflow drops the oldest events and inserts an OVERFLOW
// sentinel.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labtasker/labtasker/internal/domain"
)

// DefaultBufferSize is the default per-subscriber buffer size.
const DefaultBufferSize = 1024

// Predicate filters events a subscriber wants to receive.
type Predicate struct {
	QueueID string
	Entity  domain.EntityKind // empty = any
	Status  string            // empty = any; matched against NewStatus
}

func (p Predicate) match(e domain.Event) bool {
	if p.QueueID != "" && e.QueueID != p.QueueID {
		return false
	}
	if p.Entity != "" && e.Entity != p.Entity {
		return false
	}
	if p.Status != "" && e.NewStatus != p.Status {
		return false
	}
	return true
}

// Bus is the in-process event fan-out.
type Bus struct {
	mu          sync.Mutex
	nextSubID   uint64
	nextEventID uint64
	subs        map[uint64]*subscriber
	bufferSize  int
}

type subscriber struct {
	pred Predicate
	ch   chan domain.Event
	mu   sync.Mutex
}

// New builds a Bus with the given per-subscriber buffer size (0 uses
// DefaultBufferSize).
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{subs: make(map[uint64]*subscriber), bufferSize: bufferSize}
}

// Subscribe registers a new subscriber matching pred and returns its
// handle, a long-poll token passed to Next.
func (b *Bus) Subscribe(pred Predicate) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSubID++
	id := b.nextSubID
	b.subs[id] = &subscriber{pred: pred, ch: make(chan domain.Event, b.bufferSize)}
	return id
}

// Unsubscribe removes a subscriber.
func (b *Bus) Unsubscribe(handle uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, handle)
}

// Publish is non-blocking: it is called by engine state transitions. Every
// subscriber whose predicate matches gets the event pushed into its
// buffer; on overflow the oldest buffered events are dropped to make room
// for an OVERFLOW sentinel followed by the new event.
func (b *Bus) Publish(e domain.Event) {
	e.ID = atomic.AddUint64(&b.nextEventID, 1)
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.pred.match(e) {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.push(e)
	}
}

func (s *subscriber) push(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.ch <- e:
		return
	default:
	}
	// Buffer full: drop the oldest events until there is room for an
	// OVERFLOW sentinel followed by e. With a buffer of size 1 only the
	// sentinel fits and e is dropped.
	for len(s.ch) > 0 && len(s.ch) > cap(s.ch)-2 {
		select {
		case <-s.ch:
		default:
		}
	}
	sentinel := domain.Event{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		QueueID:   e.QueueID,
		Entity:    e.Entity,
		NewStatus: domain.OverflowStatus,
	}
	select {
	case s.ch <- sentinel:
	default:
	}
	select {
	case s.ch <- e:
	default:
	}
}

// Next blocks until an event arrives on handle's buffer or timeout
// elapses. ok is false on timeout or an unknown handle.
func (b *Bus) Next(ctx context.Context, handle uint64, timeout time.Duration) (domain.Event, bool) {
	b.mu.Lock()
	s, found := b.subs[handle]
	b.mu.Unlock()
	if !found {
		return domain.Event{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e := <-s.ch:
		return e, true
	case <-timer.C:
		return domain.Event{}, false
	case <-ctx.Done():
		return domain.Event{}, false
	}
}
