// Command deepresearch is the entry point for the deep-research agent team.
// It provides a CLI interface (via Cobra) and an optional HTTP server that
// streams research runs over SSE.
package main

import (
	"fmt"
	"os"

	"github.com/lucaspecina/deepresearch-azure/cmd/deepresearch/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
