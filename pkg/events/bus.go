package events

import (
	"sync"
	"time"
)

// DefaultHistoryLimit bounds the history kept by a MemoryBus created with
// NewMemoryBus.
const DefaultHistoryLimit = 1024

// EventBus provides publish/subscribe for runtime events.
type EventBus interface {
	Publish(event Event)
	Subscribe(filter ...EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
	History(since time.Time) []Event
}

type subscriber struct {
	ch     chan Event
	filter map[EventType]bool // empty means all events
}

// MemoryBus is an in-memory implementation of EventBus. Only the most recent
// events are retained in history; polling a slow element produces one
// wait.poll event per tick.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	history     []Event
	limit       int
}

// NewMemoryBus creates a new in-memory event bus keeping DefaultHistoryLimit events.
func NewMemoryBus() *MemoryBus {
	return NewBoundedBus(DefaultHistoryLimit)
}

// NewBoundedBus creates a bus retaining at most limit events. A non-positive
// limit falls back to DefaultHistoryLimit.
func NewBoundedBus(limit int) *MemoryBus {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryBus{
		history: make([]Event, 0, min(limit, 256)),
		limit:   limit,
	}
}

func (b *MemoryBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.history = append(b.history, event)
	if over := len(b.history) - b.limit; over > 0 {
		b.history = append(b.history[:0], b.history[over:]...)
	}
	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, sub := range subs {
		if len(sub.filter) > 0 && !sub.filter[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Slow subscriber; drop.
		}
	}
}

func (b *MemoryBus) Subscribe(filter ...EventType) <-chan Event {
	sub := newSubscriber(filter)

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	return sub.ch
}

// SubscribeWithHistory subscribes like Subscribe and returns the retained
// history at the moment of subscribing. Every event is in exactly one of the
// two results.
func (b *MemoryBus) SubscribeWithHistory(filter ...EventType) ([]Event, <-chan Event) {
	sub := newSubscriber(filter)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)

	var past []Event
	for _, e := range b.history {
		if len(sub.filter) == 0 || sub.filter[e.Type] {
			past = append(past, e)
		}
	}
	return past, sub.ch
}

func newSubscriber(filter []EventType) subscriber {
	sub := subscriber{ch: make(chan Event, 64)}
	if len(filter) > 0 {
		sub.filter = make(map[EventType]bool, len(filter))
		for _, f := range filter {
			sub.filter[f] = true
		}
	}
	return sub
}

func (b *MemoryBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.ch == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

func (b *MemoryBus) History(since time.Time) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, e := range b.history {
		if !e.Timestamp.Before(since) {
			result = append(result, e)
		}
	}
	return result
}

// ForWait returns the retained events of a single wait invocation, oldest first.
func (b *MemoryBus) ForWait(waitID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, e := range b.history {
		if e.WaitID == waitID {
			result = append(result, e)
		}
	}
	return result
}
