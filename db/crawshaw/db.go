package crawshaw

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"github.com/caasmo/dripsched/db"
	"github.com/caasmo/dripsched/migrations"
)

// Db is the single-writer SQLite backend for the job queue and every other
// write path in the system (credentials, sequences, runs). Reliance on
// SQLite's serialized-writer property under BEGIN IMMEDIATE, rather than
// row-level locks, is what gives the claim primitive its atomicity.
type Db struct {
	pool *sqlitex.Pool
}

var _ db.DbApp = (*Db)(nil)

// New opens (creating if necessary) the SQLite database at path, applies the
// embedded schema, and returns a ready-to-use Db.
func New(path string) (*Db, error) {
	pool, err := sqlitex.Open(path, 0, 10)
	if err != nil {
		return nil, fmt.Errorf("crawshaw: open pool: %w", err)
	}

	conn := pool.Get(nil)
	if conn == nil {
		return nil, fmt.Errorf("crawshaw: failed to get connection for migrations")
	}
	if err := applySchema(conn, migrations.Schema()); err != nil {
		pool.Put(conn)
		pool.Close()
		return nil, fmt.Errorf("crawshaw: apply schema: %w", err)
	}
	pool.Put(conn)

	return &Db{pool: pool}, nil
}

func applySchema(conn *sqlite.Conn, fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}
		sqlBytes, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("reading embedded migration %s: %w", path, err)
		}
		if err := sqlitex.ExecScript(conn, string(sqlBytes)); err != nil {
			return fmt.Errorf("executing migration %s: %w", path, err)
		}
		return nil
	})
}

// Close releases the pool.
func (d *Db) Close() {
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
}

// mapSqliteErr turns a unique constraint violation into the typed sentinel
// every caller above the store is expected to match with errors.Is.
func mapSqliteErr(err error) error {
	if err == nil {
		return nil
	}
	if sqliteErr, ok := err.(sqlite.Error); ok && sqliteErr.Code == sqlite.SQLITE_CONSTRAINT_UNIQUE {
		return db.ErrConstraintUnique
	}
	return err
}
