// Command dripsched runs the email sequence scheduler service: the HTTP
// surface (spec §6) and the background worker tick daemon (spec §4.E),
// sharing one SQLite-backed store.
package main

import (
	"flag"
	"fmt"
	"os"

	dripsched "github.com/caasmo/dripsched"
	"github.com/caasmo/dripsched/config"
)

func main() {
	dbFile := flag.String("db", "", "path to the sqlite database file (overrides the default)")
	flag.Parse()

	cfg, err := config.Load(*dbFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dripsched:", err)
		os.Exit(1)
	}

	app, err := dripsched.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dripsched:", err)
		os.Exit(1)
	}
	app.Server.AddDaemon(dripsched.NewDbCloser(app.Core))

	app.Server.Run()
}
