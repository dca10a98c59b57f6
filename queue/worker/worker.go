// Package worker implements the scheduled-job worker loop (spec §4.E): claim
// a batch, send each job in order, apply the retry policy on failure.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caasmo/dripsched/db"
	"github.com/caasmo/dripsched/mail"
	"github.com/caasmo/dripsched/notify"
	"github.com/caasmo/dripsched/topk"
)

// DefaultMaxAttempts is the MAX_ATTEMPTS bound from spec §4.E.
const DefaultMaxAttempts = 5

// Mailer is the narrow interface the worker needs from mail.Sender.
type Mailer interface {
	Send(ctx context.Context, refreshToken, from, to, subject, bodyText string) (*mail.Sent, error)
}

// PostSender is the narrow interface the worker needs from
// sequence.StateMachine.
type PostSender interface {
	PostSend(ctx context.Context, job *db.Job, refreshToken, threadID string) error
}

// Summary is the per-tick result returned to both the HTTP trigger and the
// scheduler daemon (spec §4.E step 4).
type Summary struct {
	Claimed  int      `json:"claimed"`
	Sent     int      `json:"sent"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	Failures []string `json:"failures,omitempty"`
}

// Worker executes one claimed batch. A single Worker is safe to invoke
// concurrently from multiple goroutines/process instances; safety comes
// entirely from the Claim primitive, not from anything in this type.
type Worker struct {
	Store        db.DbApp
	Mailer       Mailer
	StateMachine PostSender
	Notifier     notify.Notifier
	FromEmail    string
	MaxAttempts  int

	// FailureRanking tracks which tenants are failing the most right now.
	// Nil disables tracking; it never affects scheduling or retries.
	FailureRanking *topk.FailureRanking
}

// Run claims up to batchSize jobs and processes them sequentially, in the
// order claim returned them. It never parallelizes within a batch (spec
// §4.E "Ordering guarantee").
func (w *Worker) Run(ctx context.Context, batchSize int) (*Summary, error) {
	jobs, err := w.Store.Claim(batchSize)
	if err != nil {
		return nil, fmt.Errorf("worker: claim: %w", err)
	}

	summary := &Summary{Claimed: len(jobs)}
	if len(jobs) == 0 {
		return summary, nil
	}

	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for _, job := range jobs {
		w.processOne(ctx, job, maxAttempts, summary)
	}

	return summary, nil
}

func (w *Worker) processOne(ctx context.Context, job *db.Job, maxAttempts int, summary *Summary) {
	cred, err := w.Store.GetCredential(job.OwnerID)
	if err != nil {
		w.fail(job, job.Attempts, fmt.Sprintf("credential lookup error: %v", err), summary)
		return
	}
	if cred == nil || cred.RefreshToken == "" {
		w.fail(job, job.Attempts, "no_refresh_token", summary)
		return
	}

	if err := w.Store.TouchCredential(job.OwnerID); err != nil {
		slog.Warn("worker: touch credential failed, continuing", "owner_id", job.OwnerID, "err", err)
	}

	sent, err := w.Mailer.Send(ctx, cred.RefreshToken, w.FromEmail, job.ToEmail, job.Subject, job.BodyText)
	if err != nil {
		w.retry(job, maxAttempts, err.Error(), summary)
		return
	}

	if err := w.Store.MarkSent(job.ID, sent.MessageID); err != nil {
		summary.Failures = append(summary.Failures, fmt.Sprintf("job %d: mark sent failed: %v", job.ID, err))
		return
	}
	job.Status = db.JobSent
	job.MessageID = sent.MessageID
	summary.Sent++

	if job.SequenceRunID == "" {
		return
	}

	if err := w.StateMachine.PostSend(ctx, job, cred.RefreshToken, sent.ThreadID); err != nil {
		slog.Error("worker: post-send sequence logic failed, job remains sent", "job_id", job.ID, "err", err)
		if evErr := w.Store.InsertEmailEvent(db.EmailEvent{
			RunID:     job.SequenceRunID,
			StepID:    job.StepID,
			Status:    "failed",
			LastError: truncateErr(err.Error()),
			SentAt:    time.Now(),
		}); evErr != nil {
			slog.Error("worker: failed to record post-send failure event", "job_id", job.ID, "err", evErr)
		}
	}
}

// retry applies spec §4.E's retry policy: reschedule with exponential
// backoff while attempts remain, otherwise terminate permanently.
func (w *Worker) retry(job *db.Job, maxAttempts int, errMsg string, summary *Summary) {
	n := job.Attempts
	if n+1 < maxAttempts {
		scheduledFor := time.Now().Add(time.Duration(1<<uint(n+1)) * time.Minute)
		if err := w.Store.Reschedule(job.ID, scheduledFor, n+1, errMsg); err != nil {
			slog.Error("worker: reschedule failed, job may be recovered late", "job_id", job.ID, "err", err)
			summary.Failures = append(summary.Failures, fmt.Sprintf("job %d: reschedule failed: %v", job.ID, err))
			return
		}
		summary.Skipped++
		return
	}

	w.fail(job, n, errMsg, summary)
}

func (w *Worker) fail(job *db.Job, attemptsBeforeIncrement int, errMsg string, summary *Summary) {
	if err := w.Store.MarkFailed(job.ID, attemptsBeforeIncrement+1, errMsg); err != nil {
		slog.Error("worker: mark failed failed, job stuck in place", "job_id", job.ID, "err", err)
		summary.Failures = append(summary.Failures, fmt.Sprintf("job %d: mark failed failed: %v", job.ID, err))
		return
	}
	summary.Failed++
	summary.Failures = append(summary.Failures, fmt.Sprintf("job %d: %s", job.ID, errMsg))

	if w.FailureRanking != nil {
		w.FailureRanking.Record(job.OwnerID)
	}

	if w.Notifier != nil {
		if err := w.Notifier.Send(context.Background(), notify.Notification{
			Timestamp: time.Now(),
			Type:      notify.Alarm,
			Source:    "worker",
			Message:   fmt.Sprintf("job %d for owner %s permanently failed: %s", job.ID, job.OwnerID, errMsg),
		}); err != nil {
			slog.Warn("worker: failure notification failed", "err", err)
		}
	}
}

func truncateErr(s string) string {
	const max = 1000
	if len(s) <= max {
		return s
	}
	return s[:max]
}
