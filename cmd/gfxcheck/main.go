// Package main is the entry point for the gfxcheck CLI tool.
package main

import (
	"os"

	"github.com/aidanlsb/gfxcheck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
