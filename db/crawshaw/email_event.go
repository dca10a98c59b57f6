package crawshaw

import (
	"fmt"
	"time"

	"crawshaw.io/sqlite/sqlitex"

	"github.com/caasmo/dripsched/db"
)

// InsertEmailEvent appends an audit row for one send attempt outcome. The
// table is append-only and nothing in this module reads it back; the
// reporting tool reads the tenant_failure_counts view over scheduled_jobs
// instead (spec §3, Email event).
func (d *Db) InsertEmailEvent(event db.EmailEvent) error {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	sentAt := event.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	err := sqlitex.Execute(conn,
		`INSERT INTO email_events (run_id, step_id, status, message_id, last_error, sent_at)
		 VALUES (?,?,?,?,?,?)`,
		&sqlitex.ExecOptions{Args: []any{
			event.RunID, event.StepID, event.Status, event.MessageID,
			event.LastError, db.TimeFormat(sentAt),
		}})
	if err != nil {
		return fmt.Errorf("insert email event: %w", mapSqliteErr(err))
	}
	return nil
}
