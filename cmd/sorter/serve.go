package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/receipt-sorter/internal/api"
	"github.com/Veraticus/receipt-sorter/internal/classify"
	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the preview API and metrics",
		Long: `Serve the HTTP API: rule listings, classification previews and Prometheus
metrics. With --classify-interval the server also classifies pending receipts
on a timer.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origin (repeatable)")
	cmd.Flags().Duration("classify-interval", 0, "Classify pending receipts this often (0 disables)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.cors_origins", cmd.Flags().Lookup("cors-origin"))
	_ = viper.BindPFlag("server.classify_interval", cmd.Flags().Lookup("classify-interval"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireServer(); err != nil {
		return common.NewUserError("no listen address; set --addr or server.addr", err)
	}
	addr := cfg.Server.Addr
	interval := cfg.Server.ClassifyInterval

	store, cleanup, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	logger := slog.Default()
	collector := metrics.NewCollector(logger)
	svc := classify.NewService(store,
		classify.WithWorkers(cfg.Workers),
		classify.WithMetrics(collector),
		classify.WithLogger(logger),
	)

	handler := api.NewHandler(store, svc, collector, logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(handler, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Serving", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if interval > 0 {
		g.Go(func() error {
			return classifyLoop(gctx, svc, interval)
		})
	}

	return g.Wait()
}

// classifyLoop classifies pending receipts every interval until ctx ends.
// Failed runs are logged; the loop keeps going.
func classifyLoop(ctx context.Context, svc *classify.Service, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		summary, err := svc.ClassifyPending(ctx, classify.Options{})
		switch {
		case errors.Is(err, common.ErrNoReceipts):
			continue
		case err != nil && ctx.Err() == nil:
			slog.Error("Scheduled classification failed", "error", err)
		default:
			slog.Info("Scheduled classification",
				"classified", summary.Classified,
				"unclassified", summary.Unclassified,
				"failed", summary.Failed)
		}
	}
}
