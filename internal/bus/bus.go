// Package bus is the in-process publish/subscribe fabric of §4.1: one
// logical topic per action id, ordered per-subscriber delivery, bounded
// queues, and snapshot-on-subscribe semantics.
//
// Overflow policy: drop-oldest-with-lag-marker. When a subscriber's queue
// is full, the bus drops the oldest buffered event and inserts a
// synthetic lag event in its place, so the subscriber stays connected and
// can detect the gap instead of being forcibly disconnected.
package bus

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Loader builds the snapshot payload delivered as the first event of a
// new subscription. Supplied by the caller (typically backed by the graph
// store) so the bus itself holds no durable state.
type Loader func(ctx context.Context, actionID uuid.UUID) (map[string]any, error)

// Subscription is a handle to a bounded, ordered event stream for one
// action.
type Subscription struct {
	actionID uuid.UUID
	events   chan Event
	bus      *Bus

	mu      sync.Mutex
	lagging bool
}

// Events returns the receive-only channel of delivered events.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close releases the subscription; it is idempotent.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Bus is a process-local publish/subscribe fabric, safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	topics map[uuid.UUID]map[*Subscription]struct{}

	queueCapacity int
}

// New creates a Bus whose per-subscriber queues hold queueCapacity events
// before the overflow policy kicks in (event_queue_capacity, default 256).
func New(queueCapacity int) *Bus {
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	return &Bus{
		topics:        make(map[uuid.UUID]map[*Subscription]struct{}),
		queueCapacity: queueCapacity,
	}
}

// Subscribe registers a new subscription for actionID and immediately
// enqueues a snapshot event built by load. Future publishes for the same
// action are delivered to the returned subscription in order.
func (b *Bus) Subscribe(ctx context.Context, actionID uuid.UUID, load Loader) (*Subscription, error) {
	sub := &Subscription{
		actionID: actionID,
		events:   make(chan Event, b.queueCapacity),
		bus:      b,
	}

	b.mu.Lock()
	subs, ok := b.topics[actionID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[actionID] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()

	if load != nil {
		snapshot, err := load(ctx, actionID)
		if err != nil {
			b.unsubscribe(sub)
			return nil, err
		}
		sub.deliver(newEvent(KindSnapshot, actionID, snapshot))
	}

	return sub, nil
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[sub.actionID]
	if !ok {
		return
	}
	if _, present := subs[sub]; !present {
		return
	}
	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(b.topics, sub.actionID)
	}
}

// Topics returns the action ids with at least one active subscriber,
// used by the housekeeping keepalive sweep to ping every live stream
// without needing to know about actions with no listeners.
func (b *Bus) Topics() []uuid.UUID {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(b.topics))
	for actionID := range b.topics {
		out = append(out, actionID)
	}
	return out
}

// Publish enqueues an event for every current subscriber of actionID. It
// never blocks: a subscriber whose queue is full has its oldest buffered
// event dropped and replaced with a lag marker, per the package doc.
func (b *Bus) Publish(actionID uuid.UUID, kind Kind, data map[string]any) {
	event := newEvent(kind, actionID, data)

	b.mu.RLock()
	subs := b.topics[actionID]
	targets := make([]*Subscription, 0, len(subs))
	for sub := range subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(event)
	}
}

// deliver enqueues event, applying the drop-oldest-with-lag-marker policy
// on overflow. The lock here guards only against concurrent deliveries to
// the same subscription racing on the drop-then-reinsert sequence.
func (s *Subscription) deliver(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.events <- event:
		s.resetLag()
		return
	default:
	}

	// Queue full: drop the oldest buffered event to make room. The first
	// overflow of a lag episode sacrifices a second slot for the marker
	// itself; later overflows of the same episode just drop-and-insert,
	// since the marker is already in the stream. If the oldest event
	// dropped is that marker, a fresh one is inserted so the gap stays
	// visible to the subscriber.
	var dropped Event
	select {
	case dropped = <-s.events:
	default:
	}

	if !s.lagging || dropped.Kind == KindLag {
		s.lagging = true
		select {
		case s.events <- newEvent(KindLag, s.actionID, nil):
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}

	select {
	case s.events <- event:
	default:
	}
}

// resetLag clears the lagging flag once the consumer catches up far enough
// that a normal (non-overflowing) delivery succeeds.
func (s *Subscription) resetLag() {
	s.lagging = false
}
