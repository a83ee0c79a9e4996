// Package main is the entry point for the valuate CLI.
package main

import (
	"os"

	"github.com/aristath/valuation/cmd/valuate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
