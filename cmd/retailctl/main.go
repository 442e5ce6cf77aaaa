// Command retailctl imports ledger exports and runs analytics queries from the
// command line, against the same store the API server uses.
package main

import (
	"os"
	_ "time/tzdata"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
