package localbus

import "sync"

// queue is an unbounded subscriber buffer. Events are handed to out one by one by pump.
type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	closing bool

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	out      chan T
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		out:  make(chan T),
	}
	go q.pump()
	return q
}

func (q *queue[T]) push(ev T) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.signal()
}

func (q *queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// finish closes out once everything queued so far has been delivered.
func (q *queue[T]) finish() {
	q.mu.Lock()
	q.closing = true
	q.mu.Unlock()
	q.signal()
}

// stop closes out without delivering the rest.
func (q *queue[T]) stop() {
	q.quitOnce.Do(func() { close(q.quit) })
}

func (q *queue[T]) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue[T]) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closing := q.closing
			q.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-q.wake:
			case <-q.quit:
				return
			}
			continue
		}
		ev := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- ev:
		case <-q.quit:
			return
		}
	}
}
