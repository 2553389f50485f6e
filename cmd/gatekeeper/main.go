// Package main provides the entry point for gatekeeper.
package main

import (
	"fmt"
	"os"

	"github.com/safedep/gatekeeper/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitCodeFor(err))
	}
}
