package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() QueueConfig {
	return QueueConfig{
		Workers:    2,
		BufferSize: 16,
		MaxRetries: 2,
		RetryDelay: 2 * time.Millisecond,
	}
}

func TestQueueRetriesUntilHandlerSucceeds(t *testing.T) {
	var attempts int32
	done := make(chan Job, 1)
	handler := func(_ context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		done <- job
		return nil
	}

	q := NewQueue("test", handler, testConfig())
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1", Type: "work"}))

	select {
	case job := <-done:
		assert.Equal(t, "j1", job.ID)
		assert.Equal(t, 2, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestQueueDiscardsAfterMaxRetries(t *testing.T) {
	sentinel := errors.New("smtp down")
	var attempts int32
	handler := func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return sentinel
	}

	discarded := make(chan Job, 1)
	cfg := testConfig()
	cfg.OnDiscard = func(job Job, err error) {
		assert.ErrorIs(t, err, sentinel)
		discarded <- job
	}

	q := NewQueue("test", handler, cfg)
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1", Type: "work"}))

	select {
	case job := <-discarded:
		assert.Equal(t, "j1", job.ID)
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never discarded")
	}
	// Initial run plus MaxRetries.
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	gate := make(chan struct{})
	first := make(chan struct{})
	var firstOnce sync.Once

	var mu sync.Mutex
	seen := map[string]bool{}
	handler := func(_ context.Context, job Job) error {
		firstOnce.Do(func() { close(first) })
		<-gate
		mu.Lock()
		seen[job.ID] = true
		mu.Unlock()
		return nil
	}

	cfg := testConfig()
	cfg.Workers = 1
	q := NewQueue("test", handler, cfg)
	q.Start(context.Background())

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(Job{ID: id, Type: "work"}))
	}

	// The worker holds job "a"; the rest sit in the buffer.
	<-first
	assert.Equal(t, len(ids)-1, q.Depth())

	close(gate)
	q.Stop()

	assert.Equal(t, 0, q.Depth())
	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		assert.True(t, seen[id], "job %s was not processed before shutdown", id)
	}
}

func TestQueueRejectsEnqueueOutsideRunningState(t *testing.T) {
	handler := func(context.Context, Job) error { return nil }
	q := NewQueue("test", handler, testConfig())

	require.Error(t, q.Enqueue(Job{ID: "early"}))

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "ok"}))
	q.Stop()

	require.Error(t, q.Enqueue(Job{ID: "late"}))
}

func TestQueueBackoffDoublesUpToCap(t *testing.T) {
	cfg := QueueConfig{RetryDelay: 10 * time.Millisecond, MaxRetryDelay: 40 * time.Millisecond}
	q := NewQueue("test", func(context.Context, Job) error { return nil }, cfg)

	assert.Equal(t, 10*time.Millisecond, q.backoff(1))
	assert.Equal(t, 20*time.Millisecond, q.backoff(2))
	assert.Equal(t, 40*time.Millisecond, q.backoff(3))
	assert.Equal(t, 40*time.Millisecond, q.backoff(6))
}
