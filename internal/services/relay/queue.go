package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/vshulcz/wxrelay/internal/domain"
)

// ErrClosed is returned by Get once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO of pending records for a single consumer.
type Queue struct {
	ready  chan struct{}
	items  []domain.Record
	mu     sync.Mutex
	closed bool
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Put appends rec without blocking. It returns false once the queue is closed.
func (q *Queue) Put(rec domain.Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, rec)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Get blocks until a record is available, the queue is closed and empty, or ctx is done.
func (q *Queue) Get(ctx context.Context) (domain.Record, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			rec := q.items[0]
			q.items[0] = domain.Record{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return rec, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return domain.Record{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return domain.Record{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of pending records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// TrimTo discards the oldest records until at most n remain and returns them.
func (q *Queue) TrimTo(n int) []domain.Record {
	if n < 0 {
		n = 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	extra := len(q.items) - n
	if extra <= 0 {
		return nil
	}
	dropped := make([]domain.Record, extra)
	copy(dropped, q.items[:extra])
	q.items = append(q.items[:0:0], q.items[extra:]...)
	return dropped
}

// Close stops accepting records. Pending records stay available to Get.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}
