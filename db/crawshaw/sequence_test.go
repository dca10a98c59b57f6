package crawshaw

import (
	"errors"
	"testing"

	"github.com/caasmo/dripsched/db"
)

// InsertSteps aborts the whole batch, with no partial writes, when any row
// in it collides on (sequence_id, step_order).
func TestInsertSteps_UniqueConflictAbortsBatch(t *testing.T) {
	d := newTestDb(t)

	steps := []db.Step{
		{SequenceID: "seq-1", StepOrder: 1, Subject: "one"},
		{SequenceID: "seq-1", StepOrder: 1, Subject: "dup"},
	}
	_, err := d.InsertSteps("seq-1", steps)
	if !errors.Is(err, db.ErrConstraintUnique) {
		t.Fatalf("err = %v, want %v", err, db.ErrConstraintUnique)
	}

	got, err := d.StepsBySequence("seq-1")
	if err != nil {
		t.Fatalf("steps by sequence: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("steps = %+v, want none (batch should have rolled back)", got)
	}
}

func TestInsertSteps_Success(t *testing.T) {
	d := newTestDb(t)

	steps := []db.Step{
		{SequenceID: "seq-1", StepOrder: 1, Subject: "first"},
		{SequenceID: "seq-1", StepOrder: 2, Subject: "second"},
	}
	out, err := d.InsertSteps("seq-1", steps)
	if err != nil {
		t.Fatalf("insert steps: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("inserted %d steps, want 2", len(out))
	}

	got, err := d.StepsBySequence("seq-1")
	if err != nil {
		t.Fatalf("steps by sequence: %v", err)
	}
	if len(got) != 2 || got[0].StepOrder != 1 || got[1].StepOrder != 2 {
		t.Fatalf("steps = %+v, want ordered step_order 1,2", got)
	}
}

// UpsertStep updates the existing row in place on a (sequence_id,
// step_order) collision instead of erroring.
func TestUpsertStep_InsertThenUpdate(t *testing.T) {
	d := newTestDb(t)

	first, err := d.UpsertStep(db.Step{SequenceID: "seq-1", StepOrder: 1, Subject: "v1", BodyText: "body v1"})
	if err != nil {
		t.Fatalf("upsert (insert): %v", err)
	}

	second, err := d.UpsertStep(db.Step{SequenceID: "seq-1", StepOrder: 1, Subject: "v2", BodyText: "body v2"})
	if err != nil {
		t.Fatalf("upsert (update): %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert on existing (sequence_id, step_order) created a new row: %q != %q", second.ID, first.ID)
	}
	if second.Subject != "v2" || second.BodyText != "body v2" {
		t.Fatalf("upsert did not update in place: %+v", second)
	}

	steps, err := d.StepsBySequence("seq-1")
	if err != nil {
		t.Fatalf("steps by sequence: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("steps = %+v, want exactly one row after upsert", steps)
	}
}

func TestNextStep(t *testing.T) {
	d := newTestDb(t)
	if _, err := d.InsertSteps("seq-1", []db.Step{
		{SequenceID: "seq-1", StepOrder: 1, Subject: "a"},
		{SequenceID: "seq-1", StepOrder: 3, Subject: "b"},
	}); err != nil {
		t.Fatalf("insert steps: %v", err)
	}

	next, err := d.NextStep("seq-1", 1)
	if err != nil {
		t.Fatalf("next step: %v", err)
	}
	if next == nil || next.StepOrder != 3 {
		t.Fatalf("next step = %+v, want step_order 3", next)
	}

	last, err := d.NextStep("seq-1", 3)
	if err != nil {
		t.Fatalf("next step: %v", err)
	}
	if last != nil {
		t.Fatalf("next step after the last one = %+v, want nil", last)
	}
}
