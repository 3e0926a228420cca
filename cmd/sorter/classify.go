package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/receipt-sorter/internal/classify"
	"github.com/Veraticus/receipt-sorter/internal/cli"
	"github.com/Veraticus/receipt-sorter/internal/common"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify pending receipts with the enabled rules",
		Long: `Run every pending receipt through the enabled rules and save the result.

Each receipt is matched against one snapshot of the rules taken when the run
starts. Receipts no rule claims are marked UNCLASSIFIED. The run can be
interrupted with Ctrl-C; receipts not yet saved stay pending.`,
		RunE: runClassify,
	}

	cmd.Flags().IntP("workers", "w", 0, "Receipts classified in parallel (default from classify.workers)")
	cmd.Flags().IntP("limit", "l", 0, "Classify at most this many receipts (0 for all)")
	cmd.Flags().Bool("no-progress", false, "Do not draw a progress bar")
	_ = viper.BindPFlag("classify.workers", cmd.Flags().Lookup("workers"))

	cmd.AddCommand(classifyStatusCmd())
	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	interruptHandler := cli.NewInterruptHandler(os.Stderr)
	ctx := interruptHandler.HandleInterrupts(cmd.Context(), true)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, cleanup, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := classify.NewService(store,
		classify.WithWorkers(cfg.Workers),
		classify.WithLogger(slog.Default()),
	)

	var progress *cli.Progress
	opts := classify.Options{Limit: limit}
	if !noProgress {
		opts.Progress = func(done, total int) {
			if progress == nil {
				progress = cli.NewProgress(os.Stderr, total, "Classifying")
			}
			progress.Set(done)
		}
	}

	summary, err := svc.ClassifyPending(ctx, opts)
	if progress != nil {
		progress.Finish()
	}
	if errors.Is(err, common.ErrNoReceipts) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No pending receipts"))
		return nil
	}

	printSummary(cmd, summary)

	if interruptHandler.WasInterrupted() {
		return nil
	}
	return err
}

func printSummary(cmd *cobra.Command, s classify.Summary) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, cli.FormatTitle(cli.ChartIcon+" Classification summary"))
	_, _ = fmt.Fprintln(out, cli.FormatDetail(
		"Receipts", strconv.Itoa(s.Total),
		"Classified", strconv.Itoa(s.Classified),
		"Unclassified", strconv.Itoa(s.Unclassified),
		"Failed", strconv.Itoa(s.Failed),
		"Skipped", strconv.Itoa(s.Skipped),
		"Archive numbers", strconv.Itoa(s.ArchiveNumbers),
		"Diagnostics", strconv.Itoa(s.Diagnostics),
		"Duration", s.Duration.Round(time.Millisecond).String(),
	))
	if s.Diagnostics > 0 {
		_, _ = fmt.Fprintln(out, cli.FormatWarning("Some rules could not be evaluated; see: sorter log"))
	}
}

func classifyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Count receipts by classification status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, cleanup, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			counts, err := store.CountReceiptsByStatus(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "STATUS\tRECEIPTS")
			for _, status := range sortedStatuses(counts) {
				_, _ = fmt.Fprintf(w, "%s\t%d\n", status, counts[status])
			}
			return w.Flush()
		},
	}
}
