// Package cmd implements chamactl, the operator CLI for the ledger: manual
// reconciliation, sweeps and totals checks against the live database.
package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/chamapay/backend/internal/app"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "chamactl",
	Short:        "Operate the chama payments ledger",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(verifyCmd, sweepCmd, driftCmd, recoverCmd)
}

// withApp builds the services for one command and tears them down after.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a := app.New(ctx)
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
