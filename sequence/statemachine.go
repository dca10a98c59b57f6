// Package sequence implements the post-send state machine (spec §4.F) and
// the run/job materializer (spec §4.G).
package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caasmo/dripsched/db"
)

// ReplyDetector is the narrow interface the state machine needs from
// replydetector.Detector.
type ReplyDetector interface {
	Replied(ctx context.Context, refreshToken, threadID, recipientEmail string, sinceMs int64) bool
}

// StateMachine advances a run after one of its jobs is marked sent.
type StateMachine struct {
	Store    db.DbApp
	Detector ReplyDetector
}

// PostSend runs spec §4.F steps 1-7 for a job that has just been marked
// sent. job.SequenceRunID and job.StepID must be set; callers only invoke
// this for jobs bound to a run.
func (sm *StateMachine) PostSend(ctx context.Context, job *db.Job, refreshToken, threadID string) error {
	sentAt := time.Now()

	if err := sm.Store.InsertEmailEvent(db.EmailEvent{
		RunID:     job.SequenceRunID,
		StepID:    job.StepID,
		Status:    "sent",
		MessageID: job.MessageID,
		SentAt:    sentAt,
	}); err != nil {
		return fmt.Errorf("sequence: insert sent event: %w", err)
	}

	run, err := sm.Store.GetRun(job.SequenceRunID)
	if err != nil {
		return fmt.Errorf("sequence: get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("sequence: run %s not found", job.SequenceRunID)
	}
	if run.Status != db.RunActive {
		// Edge case: a run already stopped/completed must not be advanced.
		return nil
	}

	step, err := sm.Store.StepByID(job.StepID)
	if err != nil {
		return fmt.Errorf("sequence: step lookup: %w", err)
	}
	if step == nil {
		return fmt.Errorf("sequence: step %s not found", job.StepID)
	}

	prevWatermark := run.LastSentAt
	run, err = sm.Store.AdvanceRun(run.ID, step.StepOrder, threadID, sentAt)
	if err != nil {
		return fmt.Errorf("sequence: advance run: %w", err)
	}

	sinceMs := prevWatermark.UnixMilli()
	if prevWatermark.IsZero() {
		sinceMs = 0
	}
	if sm.Detector.Replied(ctx, refreshToken, run.ThreadID, run.RecipientEmail, sinceMs) {
		if err := sm.Store.SetRunStatus(run.ID, db.RunStopped); err != nil {
			return fmt.Errorf("sequence: set run stopped: %w", err)
		}
		return nil
	}

	next, err := sm.Store.NextStep(step.SequenceID, step.StepOrder)
	if err != nil {
		return fmt.Errorf("sequence: next step lookup: %w", err)
	}
	if next == nil {
		if err := sm.Store.SetRunStatus(run.ID, db.RunCompleted); err != nil {
			return fmt.Errorf("sequence: set run completed: %w", err)
		}
		return nil
	}

	delay := time.Duration(next.DelayDays) * 24 * time.Hour
	newJob := db.Job{
		OwnerID:       job.OwnerID,
		ToEmail:       run.RecipientEmail,
		Subject:       next.Subject,
		BodyText:      next.BodyText,
		ScheduledFor:  time.Now().Add(delay),
		SequenceRunID: run.ID,
		StepID:        next.ID,
		Timezone:      job.Timezone,
	}
	if _, err := sm.Store.InsertJob(newJob); err != nil {
		return fmt.Errorf("sequence: insert follow-up job: %w", err)
	}

	slog.Debug("sequence: scheduled follow-up", "run_id", run.ID, "step_order", next.StepOrder, "delay_days", next.DelayDays)
	return nil
}
