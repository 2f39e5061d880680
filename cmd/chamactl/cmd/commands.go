package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/chamapay/backend/internal/app"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <checkoutRequestId>",
	Short: "Ask the gateway about a pending payment and settle it if final",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			t, err := a.Scheduler.VerifyNow(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a ledger sweep once",
}

var sweepLoansCmd = &cobra.Command{
	Use:   "loans",
	Short: "Mark past-due loans overdue and refresh their penalties",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			report, err := a.Loans.SweepOverdue(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

var sweepDay string

var sweepContributionsCmd = &cobra.Command{
	Use:   "contributions",
	Short: "Record missed-day penalties for members who did not contribute",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			day := a.Contributions.PreviousDay(time.Now())
			if sweepDay != "" {
				parsed, err := parseDay(sweepDay, a.Cadence.Location())
				if err != nil {
					return err
				}
				day = parsed
			}

			recorded, err := a.Contributions.SweepMissedContributions(ctx, day)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d missed contributions recorded\n", day.Format("2006-01-02"), recorded)
			return nil
		})
	},
}

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "List members whose cached totals disagree with their transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			drift, err := a.Totals.Drift(ctx)
			if err != nil {
				return err
			}
			if len(drift) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no drift")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), drift)
		})
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Re-queue pending transactions for reconciliation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.Scheduler.Recover(ctx, a.Store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d transactions queued\n", n)
			return nil
		})
	},
}

func init() {
	sweepContributionsCmd.Flags().StringVar(&sweepDay, "day", "", "contribution day to sweep (YYYY-MM-DD); defaults to yesterday")
	sweepCmd.AddCommand(sweepLoansCmd, sweepContributionsCmd)
}

// parseDay reads a calendar date at noon local time, safely inside its
// contribution day whatever the cutoff hour.
func parseDay(raw string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --day %q: %w", raw, err)
	}
	return d.Add(12 * time.Hour), nil
}
