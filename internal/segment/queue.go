package segment

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrTimeout is returned when no capture arrives before the timeout
	ErrTimeout = errors.New("timed out waiting for capture")

	// ErrWoken is returned when a waiter is woken with nothing queued
	ErrWoken = errors.New("woken with no capture queued")
)

// Queue hands captures from the audio goroutine to the game goroutine.
//
// All state is guarded by one mutex. Waiters block on a broadcast channel that
// is closed and replaced on every Push and WakeAll.
type Queue struct {
	mu       sync.Mutex
	pending  []Capture
	consumed []Capture
	notify   chan struct{}
}

// NewQueue creates an empty capture queue
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{})}
}

// Push appends a capture and wakes all waiters
func (q *Queue) Push(c Capture) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, c)
	q.broadcastLocked()
}

// WakeAll wakes every waiter without queueing anything. Waiters that find the
// queue empty return ErrWoken.
func (q *Queue) WakeAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.broadcastLocked()
}

func (q *Queue) broadcastLocked() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// Pop removes the earliest capture, waiting up to timeout for one to arrive.
// A queued capture is returned immediately.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (Capture, error) {
	q.mu.Lock()
	if c, ok := q.popLocked(); ok {
		q.mu.Unlock()
		return c, nil
	}
	if timeout <= 0 {
		q.mu.Unlock()
		return Capture{}, ErrTimeout
	}
	wake := q.notify
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Capture{}, ctx.Err()
	case <-timer.C:
		return Capture{}, ErrTimeout
	case <-wake:
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if c, ok := q.popLocked(); ok {
		return c, nil
	}
	return Capture{}, ErrWoken
}

func (q *Queue) popLocked() (Capture, bool) {
	if len(q.pending) == 0 {
		return Capture{}, false
	}
	c := q.pending[0]
	q.pending[0] = Capture{}
	q.pending = q.pending[1:]
	q.consumed = append(q.consumed, c)
	return c, true
}

// Ready reports whether a capture is waiting
func (q *Queue) Ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0
}

// Len returns the number of pending captures
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Clear drops every pending capture and returns how many were dropped
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	q.pending = nil
	return n
}

// Pending returns a copy of the captures not yet consumed
func (q *Queue) Pending() []Capture {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Capture(nil), q.pending...)
}

// Consumed returns a copy of the captures already handed out, oldest first
func (q *Queue) Consumed() []Capture {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Capture(nil), q.consumed...)
}

// Save writes consumed then pending captures to path as JSON
func (q *Queue) Save(path string) error {
	q.mu.Lock()
	all := make([]Capture, 0, len(q.consumed)+len(q.pending))
	all = append(all, q.consumed...)
	all = append(all, q.pending...)
	q.mu.Unlock()

	return SaveCaptures(path, all)
}
