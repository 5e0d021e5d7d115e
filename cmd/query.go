package cmd

import (
	"encoding/json"
	"fmt"

	"sqlgateway/internal/orchestrator"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <natural language question>",
	Short: "Translate a natural-language question into SQL, execute it, and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	gw, _, err := buildGateway(ctx, configPath)
	if err != nil {
		return err
	}
	defer gw.Shutdown()

	result := gw.ProcessQuery(ctx, args[0], orchestrator.DefaultOptions())

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

	if !result.Success {
		return fmt.Errorf("query failed: %s", result.ErrorMessage)
	}
	return nil
}
