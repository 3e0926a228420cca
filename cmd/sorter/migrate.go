package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/receipt-sorter/internal/cli"
	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			statusOnly, _ := cmd.Flags().GetBool("status")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
			if err != nil {
				return common.NewUserError("could not open the database", err)
			}
			defer func() { _ = store.Close() }()

			before, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			if statusOnly {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d\n", store.Path(), before)
				return nil
			}

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			after, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			added, err := store.SeedSystemRules(ctx)
			if err != nil {
				return fmt.Errorf("failed to seed system rules: %w", err)
			}

			if after == before {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Schema is current (version %d)", after)))
			} else {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
					fmt.Sprintf("Migrated schema from version %d to %d", before, after)))
			}
			if added > 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added %d system rules", added)))
			}
			return nil
		},
	}

	cmd.Flags().Bool("status", false, "Only print the current schema version")
	return cmd
}
