// Package main provides the gridview command.
package main

import (
	"os"

	"github.com/leapstack-labs/gridview/internal/cli"

	// Register database adapters
	_ "github.com/leapstack-labs/gridview/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/gridview/pkg/adapters/postgres"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
