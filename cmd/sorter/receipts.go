package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/receipt-sorter/internal/cli"
	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/model"
	"github.com/Veraticus/receipt-sorter/internal/tui"
)

func receiptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "receipts",
		Aliases: []string{"receipt"},
		Short:   "Manage receipts",
	}

	cmd.AddCommand(receiptsAddCmd())
	cmd.AddCommand(receiptsImportCmd())
	cmd.AddCommand(receiptsListCmd())
	cmd.AddCommand(receiptsShowCmd())
	cmd.AddCommand(receiptsSetCmd())
	cmd.AddCommand(receiptsReviewCmd())

	return cmd
}

func receiptsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a receipt from extracted fields",
		Example: `  sorter receipts add -f receipt_type=TAXI -f amount=35.20 -f date=2024-03-15 -f seller_name="City Cabs"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			raw, _ := cmd.Flags().GetStringArray("field")
			if len(raw) == 0 {
				return fmt.Errorf("at least one --field is required")
			}
			bag, err := parseFields(raw)
			if err != nil {
				return err
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			receipt := &model.Receipt{Fields: bag}
			if err := store.SaveReceipt(ctx, receipt); err != nil {
				if errors.Is(err, common.ErrDuplicateEntry) {
					return common.NewUserError("an identical receipt is already stored", err)
				}
				return fmt.Errorf("failed to save receipt: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Added receipt "+receipt.ID))
			return nil
		},
	}

	cmd.Flags().StringArrayP("field", "f", nil, "Receipt field as name=value (repeatable)")
	return cmd
}

func receiptsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import receipts from a JSON array of field objects",
		Long: `Import receipts from a JSON file holding an array of objects, one per
receipt, mapping field names to values. Receipts already stored are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read receipt file: %w", err)
			}
			var bags []model.FieldBag
			if err := json.Unmarshal(data, &bags); err != nil {
				return fmt.Errorf("failed to parse receipt file: %w", err)
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var added, skipped int
			for _, bag := range bags {
				receipt := &model.Receipt{Fields: bag}
				if err := store.SaveReceipt(ctx, receipt); err != nil {
					if errors.Is(err, common.ErrDuplicateEntry) {
						skipped++
						continue
					}
					return fmt.Errorf("failed to save receipt: %w", err)
				}
				added++
			}

			slog.Info("Imported receipts", "added", added, "duplicates", skipped)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("Imported %d receipts (%d duplicates skipped)", added, skipped)))
			return nil
		},
	}
}

func receiptsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List receipts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			receipts, err := store.ListReceipts(ctx, model.ClassificationStatus(strings.ToUpper(status)), limit)
			if err != nil {
				return fmt.Errorf("failed to list receipts: %w", err)
			}
			if len(receipts) == 0 {
				slog.Info("No receipts found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tSELLER\tSTATUS\tCATEGORY\tARCHIVE NO.")
			_, _ = fmt.Fprintln(w, "──\t────\t──────\t──────\t──────\t────────\t───────────")
			for _, r := range receipts {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID,
					fieldText(r.Fields, model.FieldDate),
					fieldText(r.Fields, model.FieldAmount),
					truncateString(fieldText(r.Fields, model.FieldSellerName), 24),
					r.Status,
					r.Attributes[model.AttrCategory],
					r.ArchiveNumber)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringP("status", "s", "", "Only receipts with this status")
	cmd.Flags().IntP("limit", "l", 50, "Maximum receipts to show (0 for all)")
	return cmd
}

func receiptsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			r, err := store.GetReceipt(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, cli.FormatTitle(cli.ReceiptIcon+" "+r.ID))

			rule := "-"
			if r.RuleID != nil {
				rule = fmt.Sprintf("%d", *r.RuleID)
			}
			classified := "-"
			if r.ClassifiedAt != nil {
				classified = r.ClassifiedAt.Format("2006-01-02 15:04:05")
			}
			_, _ = fmt.Fprintln(out, cli.FormatDetail(
				"Status", string(r.Status),
				"Rule", rule,
				"Classified", classified,
				"Archive path", r.ArchivePath,
				"Archive number", r.ArchiveNumber,
				"Tags", strings.Join(r.Tags, ", "),
			))

			var pairs []string
			for _, f := range model.AllFields() {
				if v, ok := r.Fields[f]; ok {
					pairs = append(pairs, string(f), v.Text())
				}
			}
			_, _ = fmt.Fprintln(out, cli.RenderBox("Fields", cli.FormatDetail(pairs...)))

			pairs = pairs[:0]
			for _, a := range model.AllAttributes() {
				if v, ok := r.Attributes[a]; ok {
					pairs = append(pairs, string(a), v)
				}
			}
			if len(pairs) > 0 {
				_, _ = fmt.Fprintln(out, cli.RenderBox("Attributes", cli.FormatDetail(pairs...)))
			}
			return nil
		},
	}
}

func receiptsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Override classification attributes by hand",
		Long: `Set attributes on a receipt by hand. The receipt is marked USER_MODIFIED
and later classification runs leave it alone.`,
		Example: `  sorter receipts set rcpt_0123456789abcdef -a category=TRAVEL -a project=apollo`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, _ := cmd.Flags().GetStringArray("attr")
			attrs, err := parseAttributes(raw)
			if err != nil {
				return err
			}

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.UpdateReceiptAttributes(ctx, args[0], attrs); err != nil {
				return fmt.Errorf("failed to update receipt: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Updated receipt "+args[0]))
			return nil
		},
	}

	cmd.Flags().StringArrayP("attr", "a", nil, "Attribute as name=value (repeatable)")
	if err := cmd.MarkFlagRequired("attr"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}
	return cmd
}

func receiptsReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Classify unclassified receipts by hand in an interactive screen",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			status, _ := cmd.Flags().GetString("status")

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			receipts, err := store.ListReceipts(ctx, model.ClassificationStatus(strings.ToUpper(status)), 0)
			if err != nil {
				return fmt.Errorf("failed to list receipts: %w", err)
			}
			if len(receipts) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing to review"))
				return nil
			}

			saved, err := tui.Run(ctx, store, receipts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Classified %d receipts by hand", saved)))
			return nil
		},
	}

	cmd.Flags().StringP("status", "s", string(model.StatusUnclassified), "Review receipts with this status")
	return cmd
}

// parseAttributes turns name=value flags into attribute assignments.
// Category and sub-category values must belong to their enumerations.
func parseAttributes(raw []string) (map[model.Attribute]string, error) {
	attrs := make(map[model.Attribute]string, len(raw))
	for _, s := range raw {
		k, v, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("attribute %q: want name=value", s)
		}
		attr, err := model.ParseAttribute(strings.TrimSpace(k))
		if err != nil {
			return nil, err
		}
		v = strings.TrimSpace(v)
		switch attr {
		case model.AttrCategory:
			if _, err := model.ParseCategory(strings.ToUpper(v)); err != nil {
				return nil, err
			}
			v = strings.ToUpper(v)
		case model.AttrSubCategory:
			if _, err := model.ParseSubCategory(strings.ToUpper(v)); err != nil {
				return nil, err
			}
			v = strings.ToUpper(v)
		case model.AttrExpenseType, model.AttrDepartment, model.AttrProject:
		}
		attrs[attr] = v
	}
	return attrs, nil
}

func fieldText(bag model.FieldBag, f model.Field) string {
	if v, ok := bag[f]; ok {
		return v.Text()
	}
	return ""
}

// sortedStatuses returns the statuses in counts in a stable order.
func sortedStatuses(counts map[model.ClassificationStatus]int) []model.ClassificationStatus {
	out := make([]model.ClassificationStatus, 0, len(counts))
	for s := range counts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
