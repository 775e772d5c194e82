package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/campushub-api/pkg/jobs"
)

const (
	jobVerification  = "mail.verification"
	jobPasswordReset = "mail.password_reset"
)

type mailPayload struct {
	To    string
	Name  string
	Token string
}

// Dispatcher decouples mail delivery from the request path. Sends are
// enqueued onto a worker queue; delivery failures are retried there and never
// surface to the caller, matching the at-most-once delivery tradeoff of the
// registration and reset flows.
type Dispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewDispatcher wraps a Sender with a background delivery queue. SMTP relays
// throttle and flap, so delivery retries more patiently than the queue
// default, and a mail dropped for good is logged with its recipient so the
// address can be contacted out of band.
func NewDispatcher(sender Sender, cfg jobs.QueueConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = time.Minute
	}
	if cfg.OnDiscard == nil {
		cfg.OnDiscard = func(job jobs.Job, err error) {
			to := "unknown"
			if payload, ok := job.Payload.(mailPayload); ok {
				to = payload.To
			}
			logger.Sugar().Errorw("mail undeliverable", "type", job.Type, "to", to, "error", err)
		}
	}

	handler := func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(mailPayload)
		if !ok {
			return fmt.Errorf("unexpected mail payload type %T", job.Payload)
		}
		switch job.Type {
		case jobVerification:
			return sender.SendVerification(ctx, payload.To, payload.Name, payload.Token)
		case jobPasswordReset:
			return sender.SendPasswordReset(ctx, payload.To, payload.Name, payload.Token)
		default:
			return fmt.Errorf("unknown mail job type %q", job.Type)
		}
	}

	return &Dispatcher{queue: jobs.NewQueue("mail", handler, cfg), logger: logger}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// EnqueueVerification schedules an email-verification mail.
func (d *Dispatcher) EnqueueVerification(to, name, token string) {
	d.enqueue(jobVerification, mailPayload{To: to, Name: name, Token: token})
}

// EnqueuePasswordReset schedules a password-reset mail.
func (d *Dispatcher) EnqueuePasswordReset(to, name, token string) {
	d.enqueue(jobPasswordReset, mailPayload{To: to, Name: name, Token: token})
}

func (d *Dispatcher) enqueue(jobType string, payload mailPayload) {
	err := d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
	if err != nil {
		d.logger.Sugar().Warnw("failed to enqueue mail", "type", jobType, "error", err)
	}
}
