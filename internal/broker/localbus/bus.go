package localbus

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultBuffer = 64

// Bus fans events out to in-process subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event and the drop is counted. Queued subscribers
// never miss events; their backlog grows instead.
type Bus[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]chan T
	queues  map[uint64]*queue[T]
	nextID  uint64
	buffer  int
	closed  bool
	dropped atomic.Int64
}

func New[T any](buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus[T]{subs: make(map[uint64]chan T), queues: make(map[uint64]*queue[T]), buffer: buffer}
}

// Subscribe returns a channel of future events and a function that detaches it.
// The channel is closed on unsubscribe or when the bus is closed.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// SubscribeQueued is like Subscribe, but events are never dropped. When the bus is closed
// the channel is closed after the backlog is delivered; unsubscribe closes it at once.
func (b *Bus[T]) SubscribeQueued() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}
	q := newQueue[T]()
	id := b.nextID
	b.nextID++
	b.queues[id] = q

	return q.out, func() {
		b.mu.Lock()
		delete(b.queues, id)
		b.mu.Unlock()
		q.stop()
	}
}

func (b *Bus[T]) Publish(ev T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			n := b.dropped.Add(1)
			slog.Warn("event subscriber is slow, event dropped", "dropped_total", n)
		}
	}
	for _, q := range b.queues {
		q.push(ev)
	}
}

func (b *Bus[T]) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Bus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) + len(b.queues)
}

// Backlog is the number of events waiting in queued subscriptions.
func (b *Bus[T]) Backlog() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, q := range b.queues {
		n += q.pending()
	}
	return n
}

func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	for id, q := range b.queues {
		delete(b.queues, id)
		q.finish()
	}
}
