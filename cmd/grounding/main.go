// Package main is the entry point for the grounding CLI.
package main

import (
	"os"

	"github.com/jmylchreest/grounding/cmd/grounding/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
