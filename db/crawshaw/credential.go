package crawshaw

import (
	"fmt"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"github.com/caasmo/dripsched/db"
)

// GetCredential returns the tenant's credential, or (nil, nil) if none exists
// yet. A row with an empty refresh token is returned, not hidden - callers
// are the ones who must reject it with no_refresh_token (spec §3).
func (d *Db) GetCredential(ownerID string) (*db.Credential, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	var cred *db.Credential
	err := sqlitex.Execute(conn,
		`SELECT owner_id, email, refresh_token, created_at, last_used_at
		 FROM credentials WHERE owner_id = ? LIMIT 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				createdAt, err := db.TimeParse(stmt.GetText("created_at"))
				if err != nil {
					return err
				}
				lastUsedAt, err := db.TimeParse(stmt.GetText("last_used_at"))
				if err != nil {
					return err
				}
				refreshToken, err := decryptToken(stmt.GetText("refresh_token"))
				if err != nil {
					return fmt.Errorf("decrypt refresh token: %w", err)
				}
				cred = &db.Credential{
					OwnerID:      stmt.GetText("owner_id"),
					Email:        stmt.GetText("email"),
					RefreshToken: refreshToken,
					CreatedAt:    createdAt,
					LastUsedAt:   lastUsedAt,
				}
				return nil
			},
			Args: []any{ownerID},
		})
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

// UpsertCredential inserts or replaces the tenant's credential. Called once
// per successful OAuth callback (spec §4.H).
func (d *Db) UpsertCredential(ownerID, email, refreshToken string) error {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	encrypted, err := encryptToken(refreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	now := db.TimeFormat(time.Now())
	return sqlitex.Execute(conn,
		`INSERT INTO credentials (owner_id, email, refresh_token, created_at, last_used_at)
		 VALUES (?,?,?,?,?)
		 ON CONFLICT(owner_id) DO UPDATE SET
			email = excluded.email,
			refresh_token = excluded.refresh_token`,
		&sqlitex.ExecOptions{Args: []any{ownerID, email, encrypted, now, now}})
}

// TouchCredential updates last_used_at, called by the worker right before a
// send.
func (d *Db) TouchCredential(ownerID string) error {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	return sqlitex.Execute(conn,
		`UPDATE credentials SET last_used_at = ? WHERE owner_id = ?`,
		&sqlitex.ExecOptions{Args: []any{db.TimeFormat(time.Now()), ownerID}})
}
