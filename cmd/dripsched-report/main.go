// Command dripsched-report prints the worst tenants by recent failure
// count for operator triage (spec §3 SUPPLEMENT). It reads the
// tenant_failure_counts view directly; it never touches scheduling state.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/caasmo/dripsched/config"
	"github.com/caasmo/dripsched/db/crawshaw"
)

func main() {
	dbFile := flag.String("db", "", "path to the sqlite database file (overrides the default)")
	limit := flag.Int("limit", 20, "number of tenants to report")
	flag.Parse()

	cfg, err := config.Load(*dbFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dripsched-report:", err)
		os.Exit(1)
	}

	store, err := crawshaw.New(cfg.DBFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dripsched-report:", err)
		os.Exit(1)
	}
	defer store.Close()

	tenants, err := store.TopFailingTenants(*limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dripsched-report:", err)
		os.Exit(1)
	}

	if len(tenants) == 0 {
		fmt.Println("no failed jobs on record")
		return
	}
	for _, t := range tenants {
		fmt.Printf("%-40s %d\n", t.OwnerID, t.FailureCount)
	}
}
