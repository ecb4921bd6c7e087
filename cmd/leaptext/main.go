// Package main is the entry point for the leaptext CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leaptext/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
