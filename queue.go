package blisp

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO of received chunks.
//
// A single listener pushes chunks while the session pops them with a
// timeout. Once closed, chunks already queued are still returned before the
// close error.
type Queue struct {
	mu    sync.Mutex
	items [][]byte
	err   error

	// ready holds a token whenever items may be non-empty.
	ready chan struct{}
	done  chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Push appends a chunk. Pushing to a closed queue drops the chunk.
func (q *Queue) Push(b []byte) {
	q.mu.Lock()
	if q.err != nil {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, b)
	q.mu.Unlock()
	q.signal()
}

// Pop removes and returns the oldest chunk.
//
// It blocks until a chunk is available, the queue is closed, ctx is done or
// timeout elapses, whichever happens first. A timeout <= 0 waits forever.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			b := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return b, nil
		}
		err := q.err
		q.mu.Unlock()
		if err != nil {
			return nil, err
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-expired:
			return nil, ErrResponseTimeout
		}
	}
}

// Drain discards all queued chunks and returns how many were dropped.
func (q *Queue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close terminates the queue. Pending and future pops return err once the
// queue is empty; a nil err is replaced with ErrClosed. Only the first call
// has an effect.
func (q *Queue) Close(err error) {
	if err == nil {
		err = ErrClosed
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return
	}
	q.err = err
	close(q.done)
}
