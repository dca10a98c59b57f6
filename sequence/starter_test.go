package sequence

import (
	"context"
	"testing"

	"github.com/caasmo/dripsched/db"
	"github.com/caasmo/dripsched/db/mock"
)

func TestStarter_NoSteps_Rejects(t *testing.T) {
	m := &mock.Db{StepsBySequenceFunc: func(sequenceID string) ([]db.Step, error) { return nil, nil }}
	s := &Starter{Store: m}
	if _, err := s.Start(context.Background(), StartRequest{SequenceID: "seq-1", OwnerID: "owner-1"}); err == nil {
		t.Fatal("expected error for sequence with no steps")
	}
}

func TestStarter_NoRecipients_Rejects(t *testing.T) {
	m := &mock.Db{
		StepsBySequenceFunc: func(sequenceID string) ([]db.Step, error) {
			return []db.Step{{ID: "s1", StepOrder: 0}}, nil
		},
		RecipientsBySequenceFunc: func(sequenceID string) ([]string, error) { return nil, nil },
	}
	s := &Starter{Store: m}
	if _, err := s.Start(context.Background(), StartRequest{SequenceID: "seq-1", OwnerID: "owner-1"}); err == nil {
		t.Fatal("expected error for sequence with no recipients")
	}
}

func TestStarter_CreatesOneRunAndJobPerRecipient(t *testing.T) {
	var runs []db.Run
	var jobs []db.Job

	m := &mock.Db{
		StepsBySequenceFunc: func(sequenceID string) ([]db.Step, error) {
			return []db.Step{{ID: "s1", SequenceID: sequenceID, StepOrder: 0, Subject: "hi"}}, nil
		},
		InsertRunFunc: func(run db.Run) (*db.Run, error) {
			run.ID = "run-" + run.RecipientEmail
			runs = append(runs, run)
			return &run, nil
		},
		InsertJobFunc: func(job db.Job) (*db.Job, error) {
			job.ID = int64(len(jobs) + 1)
			jobs = append(jobs, job)
			return &job, nil
		},
	}

	s := &Starter{Store: m}
	res, err := s.Start(context.Background(), StartRequest{
		SequenceID: "seq-1",
		OwnerID:    "owner-1",
		Recipients: []string{"Bob@Example.com", "alice@example.com"},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(res.Runs) != 2 || len(res.Jobs) != 2 {
		t.Fatalf("expected 2 runs and 2 jobs, got %d/%d", len(res.Runs), len(res.Jobs))
	}
	if res.Runs[0].RecipientEmail != "Bob@example.com" {
		t.Fatalf("expected domain-only case folding, got %q", res.Runs[0].RecipientEmail)
	}
}

func TestStarter_AbortsOnStoreError_KeepsPartialProgress(t *testing.T) {
	calls := 0
	m := &mock.Db{
		StepsBySequenceFunc: func(sequenceID string) ([]db.Step, error) {
			return []db.Step{{ID: "s1", StepOrder: 0}}, nil
		},
		InsertRunFunc: func(run db.Run) (*db.Run, error) {
			calls++
			if calls == 2 {
				return nil, errBoom
			}
			run.ID = "run-1"
			return &run, nil
		},
		InsertJobFunc: func(job db.Job) (*db.Job, error) {
			job.ID = 1
			return &job, nil
		},
	}

	s := &Starter{Store: m}
	res, err := s.Start(context.Background(), StartRequest{
		SequenceID: "seq-1",
		OwnerID:    "owner-1",
		Recipients: []string{"a@example.com", "b@example.com", "c@example.com"},
	})
	if err == nil {
		t.Fatal("expected error on second recipient")
	}
	if len(res.Runs) != 1 {
		t.Fatalf("expected partial progress of 1 run, got %d", len(res.Runs))
	}
}

var errBoom = errStr("boom")

type errStr string

func (e errStr) Error() string { return string(e) }
