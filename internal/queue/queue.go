// Package queue provides the admission queue in front of the AI provider.
//
// Work is admitted strictly in enqueue order and never more than
// MaxConcurrent items run at once. Admission is performed by a single
// dispatcher goroutine that is woken through a channel whenever work is
// enqueued or finishes, so queue advancement never recurses.
package queue

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueClosed is returned for work that was still queued when the queue closed.
	ErrQueueClosed = errors.New("queue closed")
	// ErrQueueFull is returned by Enqueue when MaxLength is reached.
	ErrQueueFull = errors.New("queue full")
	// ErrRemoved completes a handle whose item was removed before admission.
	ErrRemoved = errors.New("removed from queue before admission")
	// ErrTaskPanicked wraps the recovered value of a task that panicked.
	ErrTaskPanicked = errors.New("queue task panicked")
)

// Task is a unit of work executed after admission.
type Task func(ctx context.Context) (any, error)

// Config configures a Queue.
type Config struct {
	// MaxConcurrent bounds the number of admitted items. Default 2.
	MaxConcurrent int `yaml:"max_concurrent"`
	// MaxLength bounds waiting items; 0 means unbounded.
	MaxLength int `yaml:"max_length"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 2}
}

// Stats is a consistent snapshot of the queue.
type Stats struct {
	QueueLength    int   `json:"queueLength"`
	ActiveRequests int   `json:"activeRequests"`
	MaxConcurrent  int   `json:"maxConcurrent"`
	TotalEnqueued  int64 `json:"totalEnqueued"`
	TotalCompleted int64 `json:"totalCompleted"`
}

type item struct {
	id         string
	name       string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
	handle     *Handle
	elem       *list.Element
}

// Queue is a bounded-concurrency FIFO admission controller.
type Queue struct {
	mu             sync.Mutex
	pending        *list.List
	byID           map[string]*item
	active         int
	maxConcurrent  int
	maxLength      int
	closed         bool
	totalEnqueued  int64
	totalCompleted int64

	wake    chan struct{}
	done    chan struct{}
	running sync.WaitGroup
	loop    sync.WaitGroup
	now     func() time.Time
	logger  *slog.Logger

	// onAdmit, if set, is invoked by the dispatcher for every admitted item.
	onAdmit func(id string)
}

// New creates a queue and starts its dispatcher.
func New(cfg Config, logger *slog.Logger) *Queue {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.MaxLength < 0 {
		cfg.MaxLength = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		pending:       list.New(),
		byID:          make(map[string]*item),
		maxConcurrent: cfg.MaxConcurrent,
		maxLength:     cfg.MaxLength,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
		now:           time.Now,
		logger:        logger,
	}

	q.loop.Add(1)
	go q.dispatchLoop()
	return q
}

// Enqueue appends task to the tail of the queue and returns immediately.
// name is a human-readable label used in logs. If ctx is done before the
// item is admitted, the item is dropped and its handle completes with ctx.Err().
func (q *Queue) Enqueue(ctx context.Context, name string, task Task) (*Handle, error) {
	if task == nil {
		return nil, fmt.Errorf("queue: nil task")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	if q.maxLength > 0 && q.pending.Len() >= q.maxLength {
		q.mu.Unlock()
		return nil, ErrQueueFull
	}

	it := &item{
		id:         uuid.NewString(),
		name:       name,
		task:       task,
		ctx:        ctx,
		enqueuedAt: q.now(),
	}
	it.handle = newHandle(it.id, it.enqueuedAt, q.pending.Len())
	it.elem = q.pending.PushBack(it)
	q.byID[it.id] = it
	q.totalEnqueued++
	q.mu.Unlock()

	q.signal()
	return it.handle, nil
}

// Remove drops a queued item that has not been admitted yet.
// It returns false if the item is unknown or already admitted.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	it, ok := q.byID[id]
	if ok {
		q.pending.Remove(it.elem)
		delete(q.byID, id)
	}
	q.mu.Unlock()

	if !ok {
		return false
	}
	it.handle.finish(nil, ErrRemoved)
	return true
}

// Stats returns a snapshot taken under the queue lock.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		QueueLength:    q.pending.Len(),
		ActiveRequests: q.active,
		MaxConcurrent:  q.maxConcurrent,
		TotalEnqueued:  q.totalEnqueued,
		TotalCompleted: q.totalCompleted,
	}
}

// Close stops admission, completes every still-queued item with
// ErrQueueClosed, and waits for admitted work to finish or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	var dropped []*item
	for e := q.pending.Front(); e != nil; e = e.Next() {
		it, _ := e.Value.(*item)
		dropped = append(dropped, it)
	}
	q.pending.Init()
	q.byID = make(map[string]*item)
	q.mu.Unlock()

	close(q.done)
	q.loop.Wait()

	for _, it := range dropped {
		it.handle.finish(nil, ErrQueueClosed)
	}

	finished := make(chan struct{})
	go func() {
		q.running.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// signal wakes the dispatcher without blocking. A pending wake-up already
// covers this one.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) dispatchLoop() {
	defer q.loop.Done()
	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
			q.admit()
		}
	}
}

// admit starts queued items in FIFO order while capacity allows.
func (q *Queue) admit() {
	for {
		q.mu.Lock()
		if q.closed || q.active >= q.maxConcurrent || q.pending.Len() == 0 {
			q.mu.Unlock()
			return
		}
		front := q.pending.Front()
		it, _ := q.pending.Remove(front).(*item)
		delete(q.byID, it.id)

		if err := it.ctx.Err(); err != nil {
			q.mu.Unlock()
			it.handle.finish(nil, err)
			continue
		}

		q.active++
		q.running.Add(1)
		admittedAt := q.now()
		q.mu.Unlock()

		it.handle.admit(admittedAt)
		if q.onAdmit != nil {
			q.onAdmit(it.id)
		}
		q.logger.Debug("queue item admitted",
			"id", it.id,
			"name", it.name,
			"wait_ms", admittedAt.Sub(it.enqueuedAt).Milliseconds(),
		)
		go q.run(it)
	}
}

func (q *Queue) run(it *item) {
	defer q.running.Done()

	result, err := q.execute(it)

	q.mu.Lock()
	q.active--
	q.totalCompleted++
	q.mu.Unlock()

	it.handle.finish(result, err)
	q.signal()
}

func (q *Queue) execute(it *item) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue task panicked", "id", it.id, "name", it.name, "panic", r)
			err = fmt.Errorf("%w: %q: %v", ErrTaskPanicked, it.name, r)
		}
	}()
	return it.task(it.ctx)
}
