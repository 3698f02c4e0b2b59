// Package main provides the CLI for leaperl, an Erlang semantic analysis
// tool.
package main

import (
	"os"

	"github.com/leapstack-labs/leaperl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
