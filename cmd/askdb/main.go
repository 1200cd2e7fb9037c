// Package main is the askdb entrypoint.
package main

import (
	"os"

	"github.com/leapstack-labs/askdb/internal/cli"

	// Database providers register themselves on import.
	_ "github.com/leapstack-labs/askdb/pkg/providers/duckdb"
	_ "github.com/leapstack-labs/askdb/pkg/providers/mssql"
	_ "github.com/leapstack-labs/askdb/pkg/providers/mysql"
	_ "github.com/leapstack-labs/askdb/pkg/providers/postgres"
	_ "github.com/leapstack-labs/askdb/pkg/providers/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
