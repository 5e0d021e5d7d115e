package cmd

import (
	"fmt"

	gwstrings "sqlgateway/pkg/strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of every configured subordinate server",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	gw, _, err := buildGateway(ctx, configPath)
	if err != nil {
		return err
	}
	defer gw.Shutdown()

	views := gw.Status()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s %-10s %-12s %s\n", "SERVER", "PRIORITY", "STATUS", "LAST ERROR")
	for _, v := range views {
		lastErr := gwstrings.TruncateDescription(v.LastError, gwstrings.DefaultDescriptionMaxLen)
		fmt.Fprintf(out, "%-20s %-10d %-12s %s\n", v.ID, v.Priority, v.Status, lastErr)
	}
	return nil
}
