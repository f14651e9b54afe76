package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobwatch/internal/adapter"
	"github.com/amishk599/jobwatch/internal/config"
	"github.com/amishk599/jobwatch/internal/detect"
	"github.com/amishk599/jobwatch/internal/notifier"
	"github.com/amishk599/jobwatch/internal/store"
)

var checkSource string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Poll once, print matches, exit",
	Long:  "One-shot poll of every enabled source (or just --source): logs every matching listing and exits. Nothing is stored or sent.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkSource, "source", "s", "", "only check the named source")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)

	sources := selectSources(cfg, checkSource)
	if len(sources) == 0 {
		logger.Error("no matching sources", "source", checkSource)
		os.Exit(1)
	}
	logger.Info("check mode: nothing will be marked as seen")

	httpClient, err := adapter.NewHTTPClient(cfg.HTTPTimeout, cfg.ProxyURL)
	if err != nil {
		logger.Error("failed to build http client", "error", err)
		os.Exit(1)
	}

	renderer := newRenderer(cfg, sources, logger)
	deps := pollerDeps{
		cfg:            cfg,
		detector:       detect.NewDetector(store.NewNopStore(), logger),
		notifier:       notifier.NewLogNotifier(logger),
		httpClient:     httpClient,
		notifyFirstRun: true,
		logger:         logger,
	}
	if renderer != nil {
		defer renderer.Close()
		deps.renderer = renderer
	}
	pollers, err := buildPollers(sources, deps)
	if err != nil {
		logger.Error("failed to build pollers", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, p := range pollers {
		if err := p.Poll(ctx); err != nil {
			logger.Error("poll failed", "source", p.Name(), "error", err)
		}
	}

	logger.Info("check complete")
	return nil
}

// selectSources returns the enabled sources, or the one named source
// (enabled or not) when name is set.
func selectSources(cfg *config.Config, name string) []config.SourceConfig {
	if name == "" {
		return cfg.EnabledSources()
	}
	for _, s := range cfg.Sources {
		if strings.EqualFold(s.Name, name) {
			return []config.SourceConfig{s}
		}
	}
	return nil
}
