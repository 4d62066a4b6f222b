package queue

import (
	"context"
	"sync"
	"time"
)

// Handle tracks a single enqueued item until it completes.
type Handle struct {
	id          string
	enqueuedAt  time.Time
	queueLength int

	mu         sync.Mutex
	admittedAt time.Time
	result     any
	err        error

	once sync.Once
	done chan struct{}
}

func newHandle(id string, enqueuedAt time.Time, queueLength int) *Handle {
	return &Handle{
		id:          id,
		enqueuedAt:  enqueuedAt,
		queueLength: queueLength,
		done:        make(chan struct{}),
	}
}

// ID returns the item id, usable with Queue.Remove.
func (h *Handle) ID() string { return h.id }

// EnqueuedAt returns when the item was enqueued.
func (h *Handle) EnqueuedAt() time.Time { return h.enqueuedAt }

// QueueLength returns the number of items that were waiting ahead of this one.
func (h *Handle) QueueLength() int { return h.queueLength }

// Done is closed when the item completes, is removed, or is dropped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Admitted reports whether the item was admitted for execution.
func (h *Handle) Admitted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.admittedAt.IsZero()
}

// QueueWait returns the time spent waiting for admission, or 0 if the item
// was never admitted.
func (h *Handle) QueueWait() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.admittedAt.IsZero() {
		return 0
	}
	return h.admittedAt.Sub(h.enqueuedAt)
}

// Wait blocks until the item completes or ctx is done. Returning on ctx does
// not cancel the item; use Queue.Remove for items not yet admitted.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) admit(at time.Time) {
	h.mu.Lock()
	h.admittedAt = at
	h.mu.Unlock()
}

func (h *Handle) finish(result any, err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.result = result
		h.err = err
		h.mu.Unlock()
		close(h.done)
	})
}
