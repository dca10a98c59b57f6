package crawshaw

import (
	"fmt"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"github.com/caasmo/dripsched/db"
)

// TopFailingTenants reads the tenant_failure_counts view, worst first, for
// operator triage (cmd/dripsched-report). It never feeds scheduling.
func (d *Db) TopFailingTenants(limit int) ([]db.TenantFailureCount, error) {
	conn := d.pool.Get(nil)
	defer d.pool.Put(conn)

	var out []db.TenantFailureCount
	err := sqlitex.Execute(conn,
		`SELECT owner_id, failure_count FROM tenant_failure_counts
		 ORDER BY failure_count DESC, owner_id ASC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, db.TenantFailureCount{
					OwnerID:      stmt.GetText("owner_id"),
					FailureCount: int(stmt.GetInt64("failure_count")),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("top failing tenants: %w", mapSqliteErr(err))
	}
	return out, nil
}
