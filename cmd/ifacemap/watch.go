package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jward/ifacemap"
)

var flagMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep the index current while files change",
	Long: "Indexes the tree, then rebuilds whenever a matching file is created, modified, or deleted. " +
		"Bursts of changes are coalesced. With --db every published generation is exported; " +
		"with --metrics-addr Prometheus metrics are served on /metrics.",
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "listen address for /metrics (overrides config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "watch", err)
	}

	var dbPath string
	if flagDB != "" {
		if dbPath, err = filepath.Abs(flagDB); err != nil {
			return outputError(cmd, "watch", err)
		}
	}

	// The hook runs on the rebuilding goroutine, after engine is assigned.
	var engine *ifacemap.Engine
	hook := func(_ *ifacemap.Generation, stats *ifacemap.RebuildStats) {
		_ = outputResult(cmd, CLIResult{Command: "watch", Results: toCLIIndexStats(root, stats)})
		if dbPath == "" {
			return
		}
		if _, err := engine.Export(context.Background(), dbPath); err != nil {
			engine.Logger().Error("export failed", "db", dbPath, "err", err)
		}
	}

	engine, cfg, err := newEngine(root, ifacemap.WithPublishHook(hook))
	if err != nil {
		return outputError(cmd, "watch", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.MetricsAddr
	if flagMetricsAddr != "" {
		addr = flagMetricsAddr
	}
	if addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metricsMux(engine),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				engine.Logger().Error("metrics server", "addr", addr, "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := engine.Watch(ctx); err != nil {
		return outputError(cmd, "watch", err)
	}
	return nil
}

func metricsMux(e *ifacemap.Engine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.Registry(), promhttp.HandlerOpts{}))
	return mux
}
