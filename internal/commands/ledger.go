package commands

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/tellerline/teller/internal/bank"
	"github.com/tellerline/teller/internal/ledger"
	"github.com/tellerline/teller/internal/money"
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func newLedgerCommand(opts *rootOptions) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the double-entry journal",
	}
	ledgerCmd.AddCommand(newLedgerVerifyCommand(opts), newLedgerExportCommand(opts))
	return ledgerCmd
}

func newLedgerVerifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Replay the journal against stored balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := opts.openApp(ctx, false, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.svc.VerifyLedger(ctx, bank.SystemActor)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if !report.OK() {
				return fmt.Errorf("ledger does not balance")
			}
			return nil
		},
	}
}

func printReport(w io.Writer, r ledger.Report) {
	fmt.Fprintf(w, "accounts: %d  entries: %d  legs: %d  total: %s\n",
		r.Accounts, r.Entries, r.Legs, money.Format(r.Total))
	for _, m := range r.Mismatches {
		fmt.Fprintf(w, "MISMATCH %s: recorded %s, journal says %s\n",
			m.AccountID, money.Format(m.Recorded), money.Format(m.Computed))
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, "VIOLATION %v\n", v)
	}
	if r.OK() {
		fmt.Fprintln(w, "OK")
	}
}

func newLedgerExportCommand(opts *rootOptions) *cobra.Command {
	var period, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write journal legs as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if period != "" && !periodPattern.MatchString(period) {
				return fmt.Errorf("--period must look like 2025-01, got %q", period)
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := opts.openApp(ctx, false, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			legs, err := a.svc.Journal(ctx, bank.SystemActor, period)
			if err != nil {
				return err
			}
			w, done, err := output(cmd, out)
			if err != nil {
				return err
			}
			if err := ledger.WriteLegs(w, legs); err != nil {
				_ = done()
				return err
			}
			return done()
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "only this YYYY-MM period")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	return cmd
}

// output returns stdout when path is empty, otherwise a created file. done
// closes the file and reports the close error.
func output(cmd *cobra.Command, path string) (w io.Writer, done func() error, err error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}
