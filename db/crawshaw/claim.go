package crawshaw

import (
	"fmt"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"github.com/caasmo/dripsched/db"
)

// InsertJob creates a new scheduled_jobs row and returns it with its
// assigned id.
func (d *Db) InsertJob(job db.Job) (*db.Job, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	now := db.TimeFormat(time.Now())
	if job.ScheduledFor.IsZero() {
		job.ScheduledFor = time.Now()
	}
	if job.Status == "" {
		job.Status = db.JobScheduled
	}

	var id int64
	err := sqlitex.Execute(conn,
		`INSERT INTO scheduled_jobs
			(owner_id, to_email, subject, body_text, scheduled_for, status,
			 attempts, last_error, message_id, sequence_run_id, step_id,
			 timezone, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				job.OwnerID, job.ToEmail, job.Subject, job.BodyText,
				db.TimeFormat(job.ScheduledFor), job.Status,
				job.Attempts, job.LastError, job.MessageID,
				job.SequenceRunID, job.StepID, job.Timezone, now, now,
			},
		})
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", mapSqliteErr(err))
	}

	id = conn.LastInsertRowID()
	job.ID = id
	job.CreatedAt, _ = db.TimeParse(now)
	job.UpdatedAt = job.CreatedAt
	return &job, nil
}

// Claim is the atomic batch-select-and-mark primitive (spec §4.D). It runs
// entirely inside one BEGIN IMMEDIATE transaction: SQLite admits only one
// writer at a time under that mode, so two concurrent Claim calls can never
// observe and flip the same row - the transaction that loses the race blocks
// until the first commits, then finds nothing left to claim.
func (d *Db) Claim(batchSize int) ([]*db.Job, error) {
	if batchSize <= 0 {
		return nil, nil
	}

	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	if err := sqlitex.Execute(conn, "BEGIN IMMEDIATE;", nil); err != nil {
		return nil, fmt.Errorf("claim: begin immediate: %w", err)
	}
	rollback := true
	defer func() {
		if rollback {
			sqlitex.Execute(conn, "ROLLBACK;", nil)
		}
	}()

	now := db.TimeFormat(time.Now())

	var ids []int64
	var jobs []*db.Job
	err := sqlitex.Execute(conn,
		`SELECT id, owner_id, to_email, subject, body_text, scheduled_for,
			status, attempts, last_error, message_id, sequence_run_id,
			step_id, timezone, created_at, updated_at
		 FROM scheduled_jobs
		 WHERE status = ? AND scheduled_for <= ?
		 ORDER BY scheduled_for ASC, id ASC
		 LIMIT ?`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				j, err := scanJob(stmt)
				if err != nil {
					return err
				}
				jobs = append(jobs, j)
				ids = append(ids, j.ID)
				return nil
			},
			Args: []any{db.JobScheduled, now, batchSize},
		})
	if err != nil {
		return nil, fmt.Errorf("claim: select: %w", err)
	}

	if len(ids) > 0 {
		placeholders := make([]string, len(ids))
		args := make([]any, 0, len(ids)+1)
		args = append(args, now)
		for i, id := range ids {
			placeholders[i] = "?"
			args = append(args, id)
		}
		stmt := fmt.Sprintf(`UPDATE scheduled_jobs SET status = '%s', updated_at = ? WHERE id IN (%s)`,
			db.JobClaimed, strings.Join(placeholders, ","))
		if err := sqlitex.Execute(conn, stmt, &sqlitex.ExecOptions{Args: args}); err != nil {
			return nil, fmt.Errorf("claim: mark claimed: %w", err)
		}
		for _, j := range jobs {
			j.Status = db.JobClaimed
		}
	}

	if err := sqlitex.Execute(conn, "COMMIT;", nil); err != nil {
		return nil, fmt.Errorf("claim: commit: %w", err)
	}
	rollback = false

	return jobs, nil
}

// MarkSent marks a claimed job sent and records the provider message id.
func (d *Db) MarkSent(jobID int64, messageID string) error {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	return sqlitex.Execute(conn,
		`UPDATE scheduled_jobs SET status = ?, message_id = ?, updated_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{db.JobSent, messageID, db.TimeFormat(time.Now()), jobID}})
}

// Reschedule reverts a job to scheduled after a transient failure, per the
// exponential-backoff retry policy (spec §4.E).
func (d *Db) Reschedule(jobID int64, scheduledFor time.Time, attempts int, lastError string) error {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	lastError = truncate(lastError, 1000)
	return sqlitex.Execute(conn,
		`UPDATE scheduled_jobs
		 SET status = ?, scheduled_for = ?, attempts = ?, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{
			db.JobScheduled, db.TimeFormat(scheduledFor), attempts, lastError,
			db.TimeFormat(time.Now()), jobID,
		}})
}

// MarkFailed terminates a job permanently (MAX_ATTEMPTS exceeded, or a
// non-retryable error such as a missing refresh token).
func (d *Db) MarkFailed(jobID int64, attempts int, lastError string) error {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	lastError = truncate(lastError, 1000)
	return sqlitex.Execute(conn,
		`UPDATE scheduled_jobs SET status = ?, attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{db.JobFailed, attempts, lastError, db.TimeFormat(time.Now()), jobID}})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func scanJob(stmt *sqlite.Stmt) (*db.Job, error) {
	scheduledFor, err := db.TimeParse(stmt.GetText("scheduled_for"))
	if err != nil {
		return nil, fmt.Errorf("parsing scheduled_for: %w", err)
	}
	createdAt, err := db.TimeParse(stmt.GetText("created_at"))
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	updatedAt, err := db.TimeParse(stmt.GetText("updated_at"))
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &db.Job{
		ID:            stmt.GetInt64("id"),
		OwnerID:       stmt.GetText("owner_id"),
		ToEmail:       stmt.GetText("to_email"),
		Subject:       stmt.GetText("subject"),
		BodyText:      stmt.GetText("body_text"),
		ScheduledFor:  scheduledFor,
		Status:        stmt.GetText("status"),
		Attempts:      int(stmt.GetInt64("attempts")),
		LastError:     stmt.GetText("last_error"),
		MessageID:     stmt.GetText("message_id"),
		SequenceRunID: stmt.GetText("sequence_run_id"),
		StepID:        stmt.GetText("step_id"),
		Timezone:      stmt.GetText("timezone"),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}
