package crawshaw

import (
	"encoding/base64"
	"fmt"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"github.com/caasmo/dripsched/db"
)

// LatestConfig returns the most recently inserted config_versions row for
// scope, or db.ErrNotFound if none exists. Content is stored base64-encoded
// since it is opaque age ciphertext, not SQL text.
func (d *Db) LatestConfig(scope string) ([]byte, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	var encoded string
	var found bool
	err := sqlitex.Execute(conn,
		`SELECT content FROM config_versions WHERE scope = ? ORDER BY id DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{scope},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				encoded = stmt.GetText("content")
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("latest config: %w", err)
	}
	if !found {
		return nil, db.ErrNotFound
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("latest config: decoding stored content: %w", err)
	}
	return content, nil
}

// InsertConfig appends a new version for scope; LatestConfig always
// reflects the most recent insert.
func (d *Db) InsertConfig(scope string, encryptedData []byte, format, description string) error {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	encoded := base64.StdEncoding.EncodeToString(encryptedData)
	err := sqlitex.Execute(conn,
		`INSERT INTO config_versions (scope, content, format, description, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{scope, encoded, format, description, db.TimeFormat(time.Now())}})
	if err != nil {
		return fmt.Errorf("insert config: %w", err)
	}
	return nil
}
