package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tellerline/teller/internal/bank"
	"github.com/tellerline/teller/internal/importer"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "import <format> <file> | import --dir <root>",
		Short: "Load legacy customer and account exports",
		Long: `Load CSV dumps of the legacy backend's tables.

Formats: customers (id,full_name,email,phone,address,created_at) and
accounts (account_number,customer_email,account_type,balance,status).
Carried-over balances are posted as opening deposits so the ledger balances.

With --dir, every CSV under <root>/import/ whose name starts with a format is
loaded, customers first, and clean files are moved to import/processed/.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if dir != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := opts.openApp(ctx, false, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			reg := importer.DefaultRegistry()
			var sums []importer.Summary
			if dir != "" {
				root, err := filepath.Abs(dir)
				if err != nil {
					return fmt.Errorf("resolving path: %w", err)
				}
				sums, err = importer.ImportDir(ctx, reg, a.svc, bank.SystemActor, root)
				if err != nil {
					return err
				}
			} else {
				sum, err := importer.ImportFile(ctx, reg, a.svc, bank.SystemActor, args[0], args[1])
				if err != nil {
					return err
				}
				sums = append(sums, sum)
			}

			failed := 0
			for _, s := range sums {
				printSummary(cmd.OutOrStdout(), s)
				failed += len(s.Errors)
				a.log.Info("import finished",
					zap.String("format", s.Format),
					zap.Int("rows", s.Rows),
					zap.Int("imported", s.Imported),
					zap.Int("failed", len(s.Errors)))
			}
			if failed > 0 {
				return fmt.Errorf("%d rows failed to import", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "import every CSV under <dir>/import/")

	return cmd
}

func printSummary(w io.Writer, s importer.Summary) {
	fmt.Fprintf(w, "%s: %d of %d rows imported\n", s.Format, s.Imported, s.Rows)
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %v\n", e)
	}
}
