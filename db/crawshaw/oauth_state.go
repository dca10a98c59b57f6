package crawshaw

import (
	"fmt"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"github.com/caasmo/dripsched/db"
)

// InsertOAuthState records a CSRF-protection nonce for the in-flight OAuth
// flow. state is generated by the caller (spec §4.H, /oauth/start).
func (d *Db) InsertOAuthState(state db.OAuthState) error {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	return sqlitex.Execute(conn,
		`INSERT INTO oauth_state (state, owner_id, return_url, expires_at, consumed)
		 VALUES (?,?,?,?,0)`,
		&sqlitex.ExecOptions{Args: []any{
			state.State, state.OwnerID, state.ReturnURL, db.TimeFormat(state.ExpiresAt),
		}})
}

// ConsumeOAuthState atomically reads and marks a state consumed in one
// transaction, so a replayed callback with the same state can never succeed
// twice. Returns db.ErrStateExpired if the state is unknown, already
// consumed, or past its expiry.
func (d *Db) ConsumeOAuthState(state string) (*db.OAuthState, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	if err := sqlitex.Execute(conn, "BEGIN IMMEDIATE;", nil); err != nil {
		return nil, fmt.Errorf("consume oauth state: begin immediate: %w", err)
	}
	rollback := true
	defer func() {
		if rollback {
			sqlitex.Execute(conn, "ROLLBACK;", nil)
		}
	}()

	var found *db.OAuthState
	var consumed bool
	err := sqlitex.Execute(conn,
		`SELECT state, owner_id, return_url, expires_at, consumed
		 FROM oauth_state WHERE state = ? LIMIT 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				expiresAt, err := db.TimeParse(stmt.GetText("expires_at"))
				if err != nil {
					return err
				}
				found = &db.OAuthState{
					State:     stmt.GetText("state"),
					OwnerID:   stmt.GetText("owner_id"),
					ReturnURL: stmt.GetText("return_url"),
					ExpiresAt: expiresAt,
				}
				consumed = stmt.GetInt64("consumed") != 0
				return nil
			},
			Args: []any{state},
		})
	if err != nil {
		return nil, fmt.Errorf("consume oauth state: select: %w", err)
	}
	if found == nil || consumed || found.ExpiresAt.Before(time.Now()) {
		return nil, db.ErrStateExpired
	}

	if err := sqlitex.Execute(conn,
		`UPDATE oauth_state SET consumed = 1 WHERE state = ?`,
		&sqlitex.ExecOptions{Args: []any{state}}); err != nil {
		return nil, fmt.Errorf("consume oauth state: mark consumed: %w", err)
	}

	if err := sqlitex.Execute(conn, "COMMIT;", nil); err != nil {
		return nil, fmt.Errorf("consume oauth state: commit: %w", err)
	}
	rollback = false

	return found, nil
}
