package crawshaw

import (
	"fmt"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/google/uuid"

	"github.com/caasmo/dripsched/db"
)

// InsertSteps bulk-inserts steps for a sequence inside one transaction. A
// (sequence_id, step_order) collision on any row aborts the whole batch with
// db.ErrConstraintUnique, giving callers a clean 409 without partial writes
// (spec §6, the "thin CRUD wrapper" surface).
func (d *Db) InsertSteps(sequenceID string, steps []db.Step) ([]db.Step, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	if err := sqlitex.Execute(conn, "BEGIN;", nil); err != nil {
		return nil, err
	}
	rollback := true
	defer func() {
		if rollback {
			sqlitex.Execute(conn, "ROLLBACK;", nil)
		}
	}()

	out := make([]db.Step, 0, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		err := sqlitex.Execute(conn,
			`INSERT INTO sequence_steps (id, sequence_id, step_order, subject, body_text, delay_days)
			 VALUES (?,?,?,?,?,?)`,
			&sqlitex.ExecOptions{Args: []any{s.ID, sequenceID, s.StepOrder, s.Subject, s.BodyText, s.DelayDays}})
		if err != nil {
			return nil, fmt.Errorf("insert step: %w", mapSqliteErr(err))
		}
		s.SequenceID = sequenceID
		out = append(out, s)
	}

	if err := sqlitex.Execute(conn, "COMMIT;", nil); err != nil {
		return nil, err
	}
	rollback = false
	return out, nil
}

// UpsertStep inserts a step or, if (sequence_id, step_order) already exists,
// updates it in place.
func (d *Db) UpsertStep(step db.Step) (*db.Step, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	if step.ID == "" {
		step.ID = uuid.NewString()
	}

	var out db.Step
	err := sqlitex.Execute(conn,
		`INSERT INTO sequence_steps (id, sequence_id, step_order, subject, body_text, delay_days)
		 VALUES (?,?,?,?,?,?)
		 ON CONFLICT(sequence_id, step_order) DO UPDATE SET
			subject = excluded.subject,
			body_text = excluded.body_text,
			delay_days = excluded.delay_days
		 RETURNING id, sequence_id, step_order, subject, body_text, delay_days`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = db.Step{
					ID:         stmt.GetText("id"),
					SequenceID: stmt.GetText("sequence_id"),
					StepOrder:  int(stmt.GetInt64("step_order")),
					Subject:    stmt.GetText("subject"),
					BodyText:   stmt.GetText("body_text"),
					DelayDays:  int(stmt.GetInt64("delay_days")),
				}
				return nil
			},
			Args: []any{step.ID, step.SequenceID, step.StepOrder, step.Subject, step.BodyText, step.DelayDays},
		})
	if err != nil {
		return nil, fmt.Errorf("upsert step: %w", mapSqliteErr(err))
	}
	return &out, nil
}

// StepsBySequence returns every step of a sequence ordered by step_order.
func (d *Db) StepsBySequence(sequenceID string) ([]db.Step, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	var steps []db.Step
	err := sqlitex.Execute(conn,
		`SELECT id, sequence_id, step_order, subject, body_text, delay_days
		 FROM sequence_steps WHERE sequence_id = ? ORDER BY step_order ASC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				steps = append(steps, db.Step{
					ID:         stmt.GetText("id"),
					SequenceID: stmt.GetText("sequence_id"),
					StepOrder:  int(stmt.GetInt64("step_order")),
					Subject:    stmt.GetText("subject"),
					BodyText:   stmt.GetText("body_text"),
					DelayDays:  int(stmt.GetInt64("delay_days")),
				})
				return nil
			},
			Args: []any{sequenceID},
		})
	if err != nil {
		return nil, fmt.Errorf("steps by sequence: %w", err)
	}
	return steps, nil
}

// StepByID fetches a single step by its id, or (nil, nil) if unknown.
func (d *Db) StepByID(stepID string) (*db.Step, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	var step *db.Step
	err := sqlitex.Execute(conn,
		`SELECT id, sequence_id, step_order, subject, body_text, delay_days
		 FROM sequence_steps WHERE id = ? LIMIT 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				step = &db.Step{
					ID:         stmt.GetText("id"),
					SequenceID: stmt.GetText("sequence_id"),
					StepOrder:  int(stmt.GetInt64("step_order")),
					Subject:    stmt.GetText("subject"),
					BodyText:   stmt.GetText("body_text"),
					DelayDays:  int(stmt.GetInt64("delay_days")),
				}
				return nil
			},
			Args: []any{stepID},
		})
	if err != nil {
		return nil, fmt.Errorf("step by id: %w", err)
	}
	return step, nil
}

// NextStep returns the step with the smallest step_order strictly greater
// than afterOrder, or (nil, nil) if none exists (spec §4.F step 6).
func (d *Db) NextStep(sequenceID string, afterOrder int) (*db.Step, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	var step *db.Step
	err := sqlitex.Execute(conn,
		`SELECT id, sequence_id, step_order, subject, body_text, delay_days
		 FROM sequence_steps
		 WHERE sequence_id = ? AND step_order > ?
		 ORDER BY step_order ASC LIMIT 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				step = &db.Step{
					ID:         stmt.GetText("id"),
					SequenceID: stmt.GetText("sequence_id"),
					StepOrder:  int(stmt.GetInt64("step_order")),
					Subject:    stmt.GetText("subject"),
					BodyText:   stmt.GetText("body_text"),
					DelayDays:  int(stmt.GetInt64("delay_days")),
				}
				return nil
			},
			Args: []any{sequenceID, afterOrder},
		})
	if err != nil {
		return nil, fmt.Errorf("next step: %w", err)
	}
	return step, nil
}

// RecipientsBySequence returns the sequence's stored recipient list (used
// when the starter is invoked without an inline recipients[] field).
func (d *Db) RecipientsBySequence(sequenceID string) ([]string, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	var emails []string
	err := sqlitex.Execute(conn,
		`SELECT email FROM sequence_recipients WHERE sequence_id = ?`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				emails = append(emails, stmt.GetText("email"))
				return nil
			},
			Args: []any{sequenceID},
		})
	if err != nil {
		return nil, fmt.Errorf("recipients by sequence: %w", err)
	}
	return emails, nil
}
