package sequence

import (
	"context"
	"testing"
	"time"

	"github.com/caasmo/dripsched/db"
	"github.com/caasmo/dripsched/db/mock"
)

type fakeDetector struct{ replied bool }

func (f *fakeDetector) Replied(ctx context.Context, refreshToken, threadID, recipientEmail string, sinceMs int64) bool {
	return f.replied
}

func newTestStore() (*mock.Db, *db.Run, *db.Step) {
	run := &db.Run{ID: "run-1", SequenceID: "seq-1", OwnerID: "owner-1", RecipientEmail: "bob@example.com", Status: db.RunActive, CurrentStep: 0}
	step1 := &db.Step{ID: "step-1", SequenceID: "seq-1", StepOrder: 0, Subject: "hi"}

	m := &mock.Db{}
	m.GetRunFunc = func(runID string) (*db.Run, error) { return run, nil }
	m.StepByIDFunc = func(stepID string) (*db.Step, error) { return step1, nil }
	m.AdvanceRunFunc = func(runID string, stepOrder int, threadID string, sentAt time.Time) (*db.Run, error) {
		run.CurrentStep = stepOrder
		if run.ThreadID == "" {
			run.ThreadID = threadID
		}
		run.LastSentAt = sentAt
		return run, nil
	}
	m.InsertEmailEventFunc = func(ev db.EmailEvent) error { return nil }
	return m, run, step1
}

func TestPostSend_NoNextStep_Completes(t *testing.T) {
	m, run, _ := newTestStore()
	m.NextStepFunc = func(sequenceID string, afterOrder int) (*db.Step, error) { return nil, nil }

	var gotStatus string
	m.SetRunStatusFunc = func(runID, status string) error { gotStatus = status; return nil }

	sm := &StateMachine{Store: m, Detector: &fakeDetector{replied: false}}
	job := &db.Job{SequenceRunID: run.ID, StepID: "step-1", OwnerID: "owner-1"}
	if err := sm.PostSend(context.Background(), job, "refresh-token", "thread-abc"); err != nil {
		t.Fatalf("PostSend: %v", err)
	}
	if gotStatus != db.RunCompleted {
		t.Fatalf("expected run completed, got %q", gotStatus)
	}
}

func TestPostSend_NextStepExists_SchedulesFollowUp(t *testing.T) {
	m, run, _ := newTestStore()
	next := &db.Step{ID: "step-2", SequenceID: "seq-1", StepOrder: 1, DelayDays: 2}
	m.NextStepFunc = func(sequenceID string, afterOrder int) (*db.Step, error) { return next, nil }

	var inserted *db.Job
	m.InsertJobFunc = func(job db.Job) (*db.Job, error) { inserted = &job; return &job, nil }

	sm := &StateMachine{Store: m, Detector: &fakeDetector{replied: false}}
	job := &db.Job{SequenceRunID: run.ID, StepID: "step-1", OwnerID: "owner-1"}
	if err := sm.PostSend(context.Background(), job, "refresh-token", "thread-abc"); err != nil {
		t.Fatalf("PostSend: %v", err)
	}
	if inserted == nil {
		t.Fatal("expected a follow-up job to be inserted")
	}
	if inserted.StepID != "step-2" {
		t.Fatalf("expected follow-up bound to step-2, got %s", inserted.StepID)
	}
}

func TestPostSend_ReplyDetected_StopsRun(t *testing.T) {
	m, run, _ := newTestStore()
	m.NextStepFunc = func(sequenceID string, afterOrder int) (*db.Step, error) {
		t.Fatal("next step should not be looked up once a reply is detected")
		return nil, nil
	}
	var gotStatus string
	m.SetRunStatusFunc = func(runID, status string) error { gotStatus = status; return nil }

	sm := &StateMachine{Store: m, Detector: &fakeDetector{replied: true}}
	job := &db.Job{SequenceRunID: run.ID, StepID: "step-1", OwnerID: "owner-1"}
	if err := sm.PostSend(context.Background(), job, "refresh-token", "thread-abc"); err != nil {
		t.Fatalf("PostSend: %v", err)
	}
	if gotStatus != db.RunStopped {
		t.Fatalf("expected run stopped, got %q", gotStatus)
	}
}

func TestPostSend_RunNotActive_SkipsAdvance(t *testing.T) {
	m, run, _ := newTestStore()
	run.Status = db.RunStopped

	m.AdvanceRunFunc = func(runID string, stepOrder int, threadID string, sentAt time.Time) (*db.Run, error) {
		t.Fatal("advance must not be called for a non-active run")
		return nil, nil
	}

	sm := &StateMachine{Store: m, Detector: &fakeDetector{replied: false}}
	job := &db.Job{SequenceRunID: run.ID, StepID: "step-1", OwnerID: "owner-1"}
	if err := sm.PostSend(context.Background(), job, "refresh-token", "thread-abc"); err != nil {
		t.Fatalf("PostSend: %v", err)
	}
}
