package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campushub-api/pkg/jobs"
)

type flakySender struct {
	mu        sync.Mutex
	failures  int
	delivered []string
	resets    []string
}

func (s *flakySender) SendVerification(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset by relay")
	}
	s.delivered = append(s.delivered, to)
	return nil
}

func (s *flakySender) SendPasswordReset(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset by relay")
	}
	s.resets = append(s.resets, to)
	return nil
}

func (s *flakySender) deliveredTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.delivered...)
}

func testQueueConfig() jobs.QueueConfig {
	return jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 2 * time.Millisecond,
	}
}

func TestDispatcherRetriesFlakyRelay(t *testing.T) {
	sender := &flakySender{failures: 2}
	d := NewDispatcher(sender, testQueueConfig())
	d.Start(context.Background())
	defer d.Stop()

	d.EnqueueVerification("student@example.com", "Student", "token-1")

	require.Eventually(t, func() bool {
		return len(sender.deliveredTo()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"student@example.com"}, sender.deliveredTo())
}

func TestDispatcherSwallowsPermanentFailure(t *testing.T) {
	sender := &flakySender{failures: 1000}
	dropped := make(chan jobs.Job, 1)
	cfg := testQueueConfig()
	cfg.OnDiscard = func(job jobs.Job, _ error) { dropped <- job }

	d := NewDispatcher(sender, cfg)
	d.Start(context.Background())
	defer d.Stop()

	// Must return immediately regardless of what the relay does.
	d.EnqueuePasswordReset("parent@example.com", "Parent", "token-2")

	select {
	case job := <-dropped:
		payload, ok := job.Payload.(mailPayload)
		require.True(t, ok)
		assert.Equal(t, "parent@example.com", payload.To)
	case <-time.After(2 * time.Second):
		t.Fatal("undeliverable mail was never dropped")
	}
	assert.Empty(t, sender.resets)
}

func TestDispatcherStopDeliversQueuedMail(t *testing.T) {
	sender := &flakySender{}
	d := NewDispatcher(sender, testQueueConfig())
	d.Start(context.Background())

	recipients := []string{"a@example.com", "b@example.com", "c@example.com"}
	for _, to := range recipients {
		d.EnqueueVerification(to, "User", "token")
	}

	d.Stop()

	assert.ElementsMatch(t, recipients, sender.deliveredTo())
}

func TestDispatcherEnqueueBeforeStartDoesNotPanic(t *testing.T) {
	sender := &flakySender{}
	d := NewDispatcher(sender, testQueueConfig())

	assert.NotPanics(t, func() {
		d.EnqueueVerification("early@example.com", "Early", "token")
	})
	assert.Empty(t, sender.deliveredTo())
}
