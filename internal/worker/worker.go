// Package worker delivers queued ticket emails.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bis-events/gatepass/internal/mailer"
	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/pkg/queue"
)

// Jobs is the slice of the queue the worker consumes.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
}

// LogWriter stores delivery attempts.
type LogWriter interface {
	Insert(ctx context.Context, el *models.EmailLog) error
}

// EmailProcessor sends email jobs and records the outcome of every attempt.
type EmailProcessor struct {
	jobs    Jobs
	sender  mailer.Sender
	logs    LogWriter
	logger  *zap.Logger
	backoff time.Duration
	now     func() time.Time
}

// NewEmailProcessor creates an email processor. logs may be nil.
func NewEmailProcessor(jobs Jobs, sender mailer.Sender, logs LogWriter, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{jobs: jobs, sender: sender, logs: logs, logger: logger, backoff: queue.RetryBackoff, now: time.Now}
}

// SetBackoff changes the pause after a failed job.
func (p *EmailProcessor) SetBackoff(d time.Duration) { p.backoff = d }

// Process sends one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	sendErr := p.sender.Send(ctx, payload.RecipientEmail, payload.Subject, payload.BodyHTML)

	regID := payload.RegistrationID
	entry := &models.EmailLog{
		RegistrationID: &regID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
		Attempt:        job.Attempt + 1,
	}
	if sendErr != nil {
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = sendErr.Error()
	} else {
		at := p.now()
		entry.Status = models.EmailLogStatusSent
		entry.SentAt = &at
	}
	if p.logs != nil {
		if err := p.logs.Insert(ctx, entry); err != nil {
			p.logger.Warn("email log insert failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if sendErr != nil {
		return fmt.Errorf("send: %w", sendErr)
	}
	p.logger.Info("email sent",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.String("registration_id", payload.RegistrationID.String()),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt+1), zap.Error(err))
			if _, reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}
