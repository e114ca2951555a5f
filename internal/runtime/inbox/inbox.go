// Package inbox is the unbounded FIFO between the bus readers and the single
// dispatch consumer.
//
// Push never blocks and never fails while the queue is open, so bus readers
// are never slowed down by dispatch. Depth is unbounded; watch Len.
package inbox

import (
	"context"
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrClosed is returned by Push after Close and by Pop once a closed queue
// is drained.
var ErrClosed = errors.New("inbox: closed")

// Queue is a multi-producer single-consumer FIFO of T.
type Queue[T any] struct {
	mu     sync.Mutex
	items  *queue.Queue
	wake   chan struct{}
	closed bool
}

// New returns an empty open queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: queue.New(),
		wake:  make(chan struct{}, 1),
	}
}

// Push appends item.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items.Add(item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes the oldest item, waiting for one if the queue is empty. Items
// pushed before Close are still returned.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			item := q.items.Remove().(T)
			q.mu.Unlock()
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.wake:
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Close stops accepting items and wakes a waiting consumer.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}
