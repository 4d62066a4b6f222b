package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, cfg Config) *Queue {
	t.Helper()
	q := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})
	return q
}

func TestNew_Defaults(t *testing.T) {
	q := newTestQueue(t, Config{})
	stats := q.Stats()
	assert.Equal(t, 2, stats.MaxConcurrent)
	assert.Zero(t, stats.QueueLength)
	assert.Zero(t, stats.ActiveRequests)
}

func TestQueue_NeverExceedsMaxConcurrent(t *testing.T) {
	const (
		maxConcurrent = 3
		n             = 30
	)
	q := newTestQueue(t, Config{MaxConcurrent: maxConcurrent})

	var current, peak atomic.Int32
	task := func(context.Context) (any, error) {
		c := current.Add(1)
		for {
			p := peak.Load()
			if c <= p || peak.CompareAndSwap(p, c) {
				break
			}
		}
		if s := q.Stats(); s.ActiveRequests > maxConcurrent {
			t.Errorf("ActiveRequests = %d, want <= %d", s.ActiveRequests, maxConcurrent)
		}
		time.Sleep(2 * time.Millisecond)
		current.Add(-1)
		return nil, nil
	}

	handles := make([]*Handle, 0, n)
	for i := 0; i < n; i++ {
		h, err := q.Enqueue(context.Background(), fmt.Sprintf("task-%d", i), task)
		require.NoError(t, err)
		handles = append(handles, h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, h := range handles {
		_, err := h.Wait(ctx)
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, peak.Load(), int32(maxConcurrent))
	assert.Equal(t, int64(n), q.Stats().TotalCompleted)
}

func TestQueue_AdmissionFollowsEnqueueOrder(t *testing.T) {
	q := newTestQueue(t, Config{MaxConcurrent: 2})

	var mu sync.Mutex
	var admitted []string
	q.onAdmit = func(id string) {
		mu.Lock()
		admitted = append(admitted, id)
		mu.Unlock()
	}

	gate := make(chan struct{})
	task := func(context.Context) (any, error) {
		<-gate
		return nil, nil
	}

	var ids []string
	var handles []*Handle
	for i := 0; i < 8; i++ {
		h, err := q.Enqueue(context.Background(), "ordered", task)
		require.NoError(t, err)
		ids = append(ids, h.ID())
		handles = append(handles, h)
	}
	close(gate)

	for _, h := range handles {
		_, err := h.Wait(context.Background())
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, ids, admitted)
}

func TestQueue_ReturnsTaskResult(t *testing.T) {
	q := newTestQueue(t, Config{MaxConcurrent: 1})

	h, err := q.Enqueue(context.Background(), "ok", func(context.Context) (any, error) {
		return "itinerary", nil
	})
	require.NoError(t, err)
	res, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "itinerary", res)
	assert.True(t, h.Admitted())

	boom := errors.New("503 Service Unavailable")
	h, err = q.Enqueue(context.Background(), "fail", func(context.Context) (any, error) {
		return nil, boom
	})
	require.NoError(t, err)
	_, err = h.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestQueue_StatsSnapshot(t *testing.T) {
	q := newTestQueue(t, Config{MaxConcurrent: 1})

	gate := make(chan struct{})
	defer close(gate)
	task := func(context.Context) (any, error) {
		<-gate
		return nil, nil
	}

	first, err := q.Enqueue(context.Background(), "first", task)
	require.NoError(t, err)
	require.Eventually(t, first.Admitted, time.Second, time.Millisecond)

	second, err := q.Enqueue(context.Background(), "second", task)
	require.NoError(t, err)
	third, err := q.Enqueue(context.Background(), "third", task)
	require.NoError(t, err)

	stats := q.Stats()
	assert.Equal(t, 1, stats.ActiveRequests)
	assert.Equal(t, 2, stats.QueueLength)
	assert.Equal(t, int64(3), stats.TotalEnqueued)
	assert.Equal(t, 0, second.QueueLength())
	assert.Equal(t, 1, third.QueueLength(), "one item was waiting ahead of the third")
	assert.False(t, second.Admitted())
}

func TestQueue_Remove(t *testing.T) {
	q := newTestQueue(t, Config{MaxConcurrent: 1})

	gate := make(chan struct{})
	blocker, err := q.Enqueue(context.Background(), "blocker", func(context.Context) (any, error) {
		<-gate
		return nil, nil
	})
	require.NoError(t, err)
	require.Eventually(t, blocker.Admitted, time.Second, time.Millisecond)

	var ran atomic.Bool
	queued, err := q.Enqueue(context.Background(), "queued", func(context.Context) (any, error) {
		ran.Store(true)
		return nil, nil
	})
	require.NoError(t, err)

	assert.True(t, q.Remove(queued.ID()))
	assert.False(t, q.Remove(queued.ID()), "second remove is a no-op")
	assert.False(t, q.Remove(blocker.ID()), "admitted items cannot be removed")

	_, err = queued.Wait(context.Background())
	assert.ErrorIs(t, err, ErrRemoved)

	close(gate)
	_, err = blocker.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, ran.Load())
	assert.Zero(t, queued.QueueWait())
}

func TestQueue_CancelledBeforeAdmission(t *testing.T) {
	q := newTestQueue(t, Config{MaxConcurrent: 1})

	gate := make(chan struct{})
	blocker, err := q.Enqueue(context.Background(), "blocker", func(context.Context) (any, error) {
		<-gate
		return nil, nil
	})
	require.NoError(t, err)
	require.Eventually(t, blocker.Admitted, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	h, err := q.Enqueue(ctx, "cancelled", func(context.Context) (any, error) {
		ran.Store(true)
		return nil, nil
	})
	require.NoError(t, err)
	cancel()
	close(gate)

	_, err = h.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

func TestQueue_MaxLength(t *testing.T) {
	q := newTestQueue(t, Config{MaxConcurrent: 1, MaxLength: 1})

	gate := make(chan struct{})
	defer close(gate)
	task := func(context.Context) (any, error) {
		<-gate
		return nil, nil
	}

	first, err := q.Enqueue(context.Background(), "first", task)
	require.NoError(t, err)
	require.Eventually(t, first.Admitted, time.Second, time.Millisecond)

	_, err = q.Enqueue(context.Background(), "second", task)
	require.NoError(t, err)

	_, err = q.Enqueue(context.Background(), "third", task)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueue_Close(t *testing.T) {
	q := New(Config{MaxConcurrent: 1}, nil)

	gate := make(chan struct{})
	active, err := q.Enqueue(context.Background(), "active", func(context.Context) (any, error) {
		<-gate
		return "done", nil
	})
	require.NoError(t, err)
	require.Eventually(t, active.Admitted, time.Second, time.Millisecond)

	waiting, err := q.Enqueue(context.Background(), "waiting", func(context.Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- q.Close(context.Background()) }()

	_, err = waiting.Wait(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)

	close(gate)
	require.NoError(t, <-closed)

	res, err := active.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", res)

	_, err = q.Enqueue(context.Background(), "late", func(context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	require.NoError(t, q.Close(context.Background()))
}

func TestQueue_RecoversPanics(t *testing.T) {
	q := newTestQueue(t, Config{MaxConcurrent: 1})

	h, err := q.Enqueue(context.Background(), "panicky", func(context.Context) (any, error) {
		panic("unexpected")
	})
	require.NoError(t, err)
	_, err = h.Wait(context.Background())
	require.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "unexpected")

	// The queue keeps working afterwards.
	h, err = q.Enqueue(context.Background(), "after", func(context.Context) (any, error) { return 1, nil })
	require.NoError(t, err)
	res, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res)
	assert.Zero(t, q.Stats().ActiveRequests)
}

func TestHandle_WaitHonorsContext(t *testing.T) {
	q := newTestQueue(t, Config{MaxConcurrent: 1})

	gate := make(chan struct{})
	defer close(gate)
	h, err := q.Enqueue(context.Background(), "slow", func(context.Context) (any, error) {
		<-gate
		return nil, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_NilTask(t *testing.T) {
	q := newTestQueue(t, Config{})
	_, err := q.Enqueue(context.Background(), "nil", nil)
	assert.Error(t, err)
}
