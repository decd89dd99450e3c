// Package commands defines all Cobra CLI commands for the deepresearch binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/lucaspecina/deepresearch-azure/internal/audit"
	"github.com/lucaspecina/deepresearch-azure/internal/config"
	"github.com/lucaspecina/deepresearch-azure/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "deepresearch",
		Short: "Deep research over a scientific corpus with a turn-based agent team",
		Long: `deepresearch answers research questions by coordinating a fixed team of
agents: a corpus retrieval specialist backed by a Qdrant vector index, a web
research specialist backed by Bing-grounded Azure AI Agents, and a synthesis
lead that combines the evidence into a cited answer.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.deepresearch/config.yaml).
See 'deepresearch --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.deepresearch/config.yaml)")

	root.AddCommand(
		NewResearchCmd(),
		NewSessionsCmd(),
		NewArxivCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
