package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucaspecina/deepresearch-azure/internal/tools"
)

// NewArxivCmd constructs the `deepresearch arxiv` command, a standalone
// arXiv search that needs no model provider or corpus.
func NewArxivCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "arxiv [query]",
		Short: "Search arXiv for papers matching a query",
		Long: `Search the arXiv API and print the top matching papers with authors,
publication dates, summaries, and PDF links.

Examples:
  deepresearch arxiv "reinforcement learning generalization"
  deepresearch arxiv "supervised fine-tuning memorization"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := tools.NewArxivTool(nil)
			fmt.Println(t.Search(cmd.Context(), strings.Join(args, " ")))
			return nil
		},
	}
}
