package cmd

import (
	"os"

	"sqlgateway/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	ExitCodeConfig  = 2
)

var configPath string

// rootCmd is the entry point when sqlgateway is invoked without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "sqlgateway",
	Short: "Natural-language to SQL gateway over a multi-source MCP orchestrator",
	Long: `sqlgateway translates natural-language questions into SQL by aggregating
schema and metadata resources from multiple MCP servers, prompting an LLM,
and executing the result against a designated executor server, retrying
through a bounded recovery loop on failure.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitForCLI(logging.LevelInfo, os.Stderr)
	},
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command, exiting with a semantic code on failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "sqlgateway version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "gateway.yaml", "path to the gateway configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
}
