package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tellerline/teller/internal/audit"
	"github.com/tellerline/teller/internal/bank"
	"github.com/tellerline/teller/internal/model"
	"github.com/tellerline/teller/internal/store"
)

func newAuditCommand(opts *rootOptions) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Review admin decisions",
	}
	auditCmd.AddCommand(newAuditExportCommand(opts))
	return auditCmd
}

func newAuditExportCommand(opts *rootOptions) *cobra.Command {
	var (
		out, since, action, actor string
		appendTo                  bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the audit log as CSV (timestamp,actor,action,subject,details)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := store.AuditFilter{Action: action, Actor: actor}
			if since != "" {
				t, err := time.Parse(time.DateOnly, since)
				if err != nil {
					return fmt.Errorf("--since must look like 2025-01-31: %w", err)
				}
				f.Since = t
			}
			if appendTo && out == "" {
				return fmt.Errorf("--append needs --out")
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := opts.openApp(ctx, false, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := allAudit(ctx, a.svc, f)
			if err != nil {
				return err
			}
			if appendTo {
				if err := audit.AppendFile(out, entries); err != nil {
					return err
				}
			} else {
				w, done, err := output(cmd, out)
				if err != nil {
					return err
				}
				if err := audit.Write(w, entries); err != nil {
					_ = done()
					return err
				}
				if err := done(); err != nil {
					return err
				}
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d audit entries to %s\n", len(entries), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&appendTo, "append", false, "append to --out instead of replacing it")
	cmd.Flags().StringVar(&since, "since", "", "only entries on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&action, "action", "", "only this action, e.g. loan.approve")
	cmd.Flags().StringVar(&actor, "actor", "", "only this admin user ID")

	return cmd
}

// allAudit reads every page of the audit log matching f.
func allAudit(ctx context.Context, svc *bank.Service, f store.AuditFilter) ([]model.AuditEntry, error) {
	f.Limit = bank.MaxPageSize
	var all []model.AuditEntry
	for {
		entries, err := svc.ListAudit(ctx, bank.SystemActor, f)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
		if len(entries) < f.Limit {
			return all, nil
		}
		f.Offset += len(entries)
	}
}
