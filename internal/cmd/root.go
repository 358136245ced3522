// Package cmd holds the sigem command tree.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sigem",
	Short: "SIGEM authentication and module gateway",
	Long: `sigem serves the SIGEM web session layer: login, signup, password recovery,
role-based routing into the management, sales, reception, monitoring and HR
modules, and the pending-approval flow for new accounts.

Configuration is read from environment variables (see README or --help of each
command).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
