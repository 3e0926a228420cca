package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the classification operation log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := store.GetOperationLog(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to read operation log: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TIME\tKIND\tRECEIPT\tRULE\tMESSAGE")
			for _, e := range entries {
				rule := "-"
				if e.RuleID != nil {
					rule = fmt.Sprintf("%d", *e.RuleID)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					e.Kind,
					e.ReceiptID,
					rule,
					truncateString(e.Message, 80))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntP("limit", "l", 50, "Number of entries to show")
	return cmd
}
