package crawshaw

import (
	"fmt"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/google/uuid"

	"github.com/caasmo/dripsched/db"
)

// InsertRun creates a sequence_runs row for one recipient, current_step at 0
// and status active (spec §4.G, one run per recipient per sequence start).
func (d *Db) InsertRun(run db.Run) (*db.Run, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = db.RunActive
	}

	err := sqlitex.Execute(conn,
		`INSERT INTO sequence_runs
			(id, sequence_id, owner_id, recipient_email, status, current_step,
			 thread_id, last_sent_at, timezone)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		&sqlitex.ExecOptions{Args: []any{
			run.ID, run.SequenceID, run.OwnerID, run.RecipientEmail, run.Status,
			run.CurrentStep, run.ThreadID, db.TimeFormat(run.LastSentAt), run.Timezone,
		}})
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", mapSqliteErr(err))
	}
	return &run, nil
}

// GetRun fetches a run by id, or (nil, nil) if it doesn't exist.
func (d *Db) GetRun(runID string) (*db.Run, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	var run *db.Run
	err := sqlitex.Execute(conn,
		`SELECT id, sequence_id, owner_id, recipient_email, status, current_step,
			thread_id, last_sent_at, timezone
		 FROM sequence_runs WHERE id = ? LIMIT 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				r, err := scanRun(stmt)
				if err != nil {
					return err
				}
				run = r
				return nil
			},
			Args: []any{runID},
		})
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// AdvanceRun moves a run to stepOrder and records the send time,
// first-write-wins on thread_id: once a thread id has been recorded for a
// run it is never overwritten by a later step's send (spec §9, Open
// Question resolution - the thread a recipient replies on is always the one
// the first message started, regardless of which step is currently in
// flight). Returns the run's state after the update.
func (d *Db) AdvanceRun(runID string, stepOrder int, threadID string, sentAt time.Time) (*db.Run, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	err := sqlitex.Execute(conn,
		`UPDATE sequence_runs
		 SET current_step = ?,
		     last_sent_at = ?,
		     thread_id = CASE WHEN thread_id = '' OR thread_id IS NULL THEN ? ELSE thread_id END
		 WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{stepOrder, db.TimeFormat(sentAt), threadID, runID}})
	if err != nil {
		return nil, fmt.Errorf("advance run: %w", err)
	}

	return d.GetRun(runID)
}

// SetRunStatus transitions a run to stopped (reply detected) or completed
// (final step sent), the two terminal states of the sequence state machine.
func (d *Db) SetRunStatus(runID string, status string) error {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	return sqlitex.Execute(conn,
		`UPDATE sequence_runs SET status = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{status, runID}})
}

func scanRun(stmt *sqlite.Stmt) (*db.Run, error) {
	lastSentAt, err := db.TimeParse(stmt.GetText("last_sent_at"))
	if err != nil {
		return nil, fmt.Errorf("parsing last_sent_at: %w", err)
	}
	return &db.Run{
		ID:             stmt.GetText("id"),
		SequenceID:     stmt.GetText("sequence_id"),
		OwnerID:        stmt.GetText("owner_id"),
		RecipientEmail: stmt.GetText("recipient_email"),
		Status:         stmt.GetText("status"),
		CurrentStep:    int(stmt.GetInt64("current_step")),
		ThreadID:       stmt.GetText("thread_id"),
		LastSentAt:     lastSentAt,
		Timezone:       stmt.GetText("timezone"),
	}, nil
}
