package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caasmo/dripsched/db"
	"github.com/caasmo/dripsched/db/mock"
	"github.com/caasmo/dripsched/mail"
)

type stubMailer struct {
	err  error
	sent *mail.Sent
}

func (s *stubMailer) Send(ctx context.Context, refreshToken, from, to, subject, bodyText string) (*mail.Sent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sent, nil
}

type stubStateMachine struct {
	called bool
	err    error
}

func (s *stubStateMachine) PostSend(ctx context.Context, job *db.Job, refreshToken, threadID string) error {
	s.called = true
	return s.err
}

func TestRun_NoJobs(t *testing.T) {
	m := &mock.Db{ClaimFunc: func(n int) ([]*db.Job, error) { return nil, nil }}
	w := &Worker{Store: m}
	sum, err := w.Run(context.Background(), 20)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Claimed != 0 {
		t.Fatalf("expected 0 claimed, got %d", sum.Claimed)
	}
}

func TestRun_NoRefreshToken_MarksFailed(t *testing.T) {
	job := &db.Job{ID: 1, OwnerID: "owner-1"}
	var markFailedCalled bool
	m := &mock.Db{
		ClaimFunc:        func(n int) ([]*db.Job, error) { return []*db.Job{job}, nil },
		GetCredentialFunc: func(ownerID string) (*db.Credential, error) { return &db.Credential{OwnerID: ownerID}, nil },
		MarkFailedFunc: func(jobID int64, attempts int, lastError string) error {
			markFailedCalled = true
			if lastError != "no_refresh_token" {
				t.Fatalf("expected no_refresh_token error, got %q", lastError)
			}
			return nil
		},
	}
	w := &Worker{Store: m, Mailer: &stubMailer{}, StateMachine: &stubStateMachine{}}
	sum, err := w.Run(context.Background(), 20)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !markFailedCalled || sum.Failed != 1 {
		t.Fatalf("expected one permanent failure, got summary %+v", sum)
	}
}

func TestRun_TransientFailure_Reschedules(t *testing.T) {
	job := &db.Job{ID: 1, OwnerID: "owner-1", Attempts: 1}
	var rescheduled bool
	m := &mock.Db{
		ClaimFunc: func(n int) ([]*db.Job, error) { return []*db.Job{job}, nil },
		GetCredentialFunc: func(ownerID string) (*db.Credential, error) {
			return &db.Credential{OwnerID: ownerID, RefreshToken: "rt"}, nil
		},
		RescheduleFunc: func(jobID int64, scheduledFor time.Time, attempts int, lastError string) error {
			rescheduled = true
			if attempts != 2 {
				t.Fatalf("expected attempts=2, got %d", attempts)
			}
			return nil
		},
	}
	w := &Worker{Store: m, Mailer: &stubMailer{err: errors.New("transient")}, StateMachine: &stubStateMachine{}}
	sum, err := w.Run(context.Background(), 20)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rescheduled || sum.Skipped != 1 {
		t.Fatalf("expected reschedule, got summary %+v", sum)
	}
}

func TestRun_MaxAttemptsExceeded_MarksFailed(t *testing.T) {
	job := &db.Job{ID: 1, OwnerID: "owner-1", Attempts: 4}
	var failedAttempts int
	m := &mock.Db{
		ClaimFunc: func(n int) ([]*db.Job, error) { return []*db.Job{job}, nil },
		GetCredentialFunc: func(ownerID string) (*db.Credential, error) {
			return &db.Credential{OwnerID: ownerID, RefreshToken: "rt"}, nil
		},
		MarkFailedFunc: func(jobID int64, attempts int, lastError string) error {
			failedAttempts = attempts
			return nil
		},
	}
	w := &Worker{Store: m, Mailer: &stubMailer{err: errors.New("still failing")}, StateMachine: &stubStateMachine{}, MaxAttempts: 5}
	sum, err := w.Run(context.Background(), 20)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if failedAttempts != 5 || sum.Failed != 1 {
		t.Fatalf("expected permanent failure at attempts=5, got summary %+v (attempts=%d)", sum, failedAttempts)
	}
}

func TestRun_Success_InvokesPostSendForSequenceJobs(t *testing.T) {
	job := &db.Job{ID: 1, OwnerID: "owner-1", SequenceRunID: "run-1", StepID: "step-1"}
	m := &mock.Db{
		ClaimFunc: func(n int) ([]*db.Job, error) { return []*db.Job{job}, nil },
		GetCredentialFunc: func(ownerID string) (*db.Credential, error) {
			return &db.Credential{OwnerID: ownerID, RefreshToken: "rt"}, nil
		},
		MarkSentFunc: func(jobID int64, messageID string) error { return nil },
	}
	sm := &stubStateMachine{}
	w := &Worker{Store: m, Mailer: &stubMailer{sent: &mail.Sent{MessageID: "m1", ThreadID: "t1"}}, StateMachine: sm}
	sum, err := w.Run(context.Background(), 20)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Sent != 1 {
		t.Fatalf("expected 1 sent, got %+v", sum)
	}
	if !sm.called {
		t.Fatal("expected PostSend to be invoked for a sequence-bound job")
	}
}

func TestRun_OneOffSend_SkipsPostSend(t *testing.T) {
	job := &db.Job{ID: 1, OwnerID: "owner-1"}
	m := &mock.Db{
		ClaimFunc: func(n int) ([]*db.Job, error) { return []*db.Job{job}, nil },
		GetCredentialFunc: func(ownerID string) (*db.Credential, error) {
			return &db.Credential{OwnerID: ownerID, RefreshToken: "rt"}, nil
		},
		MarkSentFunc: func(jobID int64, messageID string) error { return nil },
	}
	sm := &stubStateMachine{}
	w := &Worker{Store: m, Mailer: &stubMailer{sent: &mail.Sent{MessageID: "m1"}}, StateMachine: sm}
	if _, err := w.Run(context.Background(), 20); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sm.called {
		t.Fatal("PostSend must not run for a one-off send")
	}
}
