package queue

import (
	"context"
	"sync"
)

// SignalledQueue wraps a Queue with a wakeup mechanism so a reader can
// poll, block with a timeout, or block indefinitely (spec §3). Villas'
// C implementation multiplexes over an eventfd/pipe; this port uses a
// buffered notification channel, which is the idiomatic Go analogue and
// composes directly with context cancellation and select-based poll
// loops (spec §4.6's poll loop, §5's suspension points).
type SignalledQueue[T any] struct {
	*Queue[T]

	mu     sync.Mutex
	notify chan struct{}
}

func NewSignalled[T any](capacity int) *SignalledQueue[T] {
	return &SignalledQueue[T]{
		Queue:  New[T](capacity),
		notify: make(chan struct{}, 1),
	}
}

func (q *SignalledQueue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Push enqueues and wakes any blocked reader.
func (q *SignalledQueue[T]) Push(v T) (bool, error) {
	ok, err := q.Queue.Push(v)
	if ok {
		q.wake()
	}
	return ok, err
}

// PushMany enqueues a batch and wakes any blocked reader if at least one
// value was accepted.
func (q *SignalledQueue[T]) PushMany(vs []T) (int, error) {
	n, err := q.Queue.PushMany(vs)
	if n > 0 {
		q.wake()
	}
	return n, err
}

// Close poisons the ring and wakes any blocked reader so it observes
// ErrClosed instead of hanging forever.
func (q *SignalledQueue[T]) Close() {
	q.Queue.Close()
	q.wake()
}

// PullBlocking blocks until at least one value is available, the queue
// is closed, or ctx is done. It is the sole suspension point of a
// destination thread (spec §5).
func (q *SignalledQueue[T]) PullBlocking(ctx context.Context, out []T) (n int, err error) {
	for {
		n, err = q.Queue.PullMany(out)
		if n > 0 || err != nil {
			return n, err
		}
		select {
		case <-q.notify:
			continue
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
