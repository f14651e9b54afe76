package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobwatch/internal/adapter"
	"github.com/amishk599/jobwatch/internal/detect"
	"github.com/amishk599/jobwatch/internal/metrics"
	"github.com/amishk599/jobwatch/internal/scheduler"
)

var startOnce bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the polling daemon",
	Long:  "Start the scheduler daemon; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVar(&startOnce, "once", false, "run a single pass over all sources, then exit")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)
	sources := cfg.EnabledSources()

	logger.Info("config loaded",
		"interval", cfg.PollingInterval.String(),
		"source_delay", cfg.SourceDelay.String(),
		"sources", len(sources),
		"store", cfg.Store.Type,
		"notifier", cfg.Notification.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seen, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer seen.Close()

	httpClient, err := adapter.NewHTTPClient(cfg.HTTPTimeout, cfg.ProxyURL)
	if err != nil {
		logger.Error("failed to build http client", "error", err)
		os.Exit(1)
	}
	n, err := setupNotifier(cfg, httpClient, logger)
	if err != nil {
		logger.Error("failed to set up notifier", "error", err)
		os.Exit(1)
	}

	detector := detect.NewDetector(seen, logger)
	if cfg.Metrics.Addr != "" {
		collector := metrics.NewCollector()
		detector.SetRecorder(collector)
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	renderer := newRenderer(cfg, sources, logger)
	if renderer != nil {
		defer renderer.Close()
	}

	deps := pollerDeps{
		cfg:            cfg,
		detector:       detector,
		notifier:       n,
		httpClient:     httpClient,
		notifyFirstRun: cfg.Notification.NotifyFirstRun,
		logger:         logger,
	}
	if renderer != nil {
		deps.renderer = renderer
	}
	pollers, err := buildPollers(sources, deps)
	if err != nil {
		logger.Error("failed to build pollers", "error", err)
		os.Exit(1)
	}
	if len(pollers) == 0 {
		logger.Error("no sources to poll")
		os.Exit(1)
	}

	sched := scheduler.NewScheduler(pollers, cfg.PollingInterval, cfg.SourceDelay, logger)
	if startOnce {
		sched.RunOnce(ctx)
		logger.Info("single pass complete")
		return nil
	}
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
