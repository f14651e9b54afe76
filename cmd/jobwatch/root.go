package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobwatch/internal/adapter"
	"github.com/amishk599/jobwatch/internal/browser"
	"github.com/amishk599/jobwatch/internal/config"
	"github.com/amishk599/jobwatch/internal/detect"
	"github.com/amishk599/jobwatch/internal/filter"
	"github.com/amishk599/jobwatch/internal/model"
	"github.com/amishk599/jobwatch/internal/notifier"
	"github.com/amishk599/jobwatch/internal/poller"
	"github.com/amishk599/jobwatch/internal/ratelimit"
	"github.com/amishk599/jobwatch/internal/retry"
	"github.com/amishk599/jobwatch/internal/scheduler"
	"github.com/amishk599/jobwatch/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobwatch",
	Short: "Careers page watcher",
	Long:  "jobwatch polls careers pages and job boards and alerts you to listings it has not seen before.",
	// Default to `start` so that `jobwatch` with no args runs the daemon.
	RunE:         runStart,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBWATCH_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBWATCH_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	return config.Load(resolveConfigPath(path))
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("JOBWATCH_CONFIG"); env != "" {
		return env
	}
	return "config.yaml"
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func mustLoadConfig(logger *slog.Logger) *config.Config {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (model.Notifier, error) {
	if !cfg.Notification.Enabled {
		logger.Info("notifications disabled, logging new listings only")
		return notifier.NewLogNotifier(logger), nil
	}
	switch cfg.Notification.Type {
	case config.NotifySlack:
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger), nil
	case config.NotifyTelegram:
		logger.Info("using telegram notifier")
		return notifier.NewTelegramNotifier(cfg.Notification.TelegramToken, cfg.Notification.TelegramChatID, nil, logger)
	default:
		return notifier.NewLogNotifier(logger), nil
	}
}

// seenStore is a detect.Store that holds a connection or file handles.
type seenStore interface {
	detect.Store
	Close() error
}

func openStore(ctx context.Context, cfg *config.Config) (seenStore, error) {
	switch cfg.Store.Type {
	case config.StoreSQLite:
		s, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreRedis:
		s, err := store.DialRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPass, cfg.Store.RedisDB)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreNone:
		return store.NewNopStore(), nil
	default:
		fileStore := store.NewFileStore(cfg.Store.Dir)
		for _, s := range cfg.Sources {
			if s.StorePath != "" {
				fileStore.SetPath(s.Name, s.StorePath)
			}
		}
		return fileStore, nil
	}
}

// newRenderer returns a browser renderer when any of sources needs one.
func newRenderer(cfg *config.Config, sources []config.SourceConfig, logger *slog.Logger) *browser.ChromeRenderer {
	for _, s := range sources {
		if s.Rendered() {
			return browser.NewChromeRenderer(browser.Options{
				ExecPath:    cfg.Browser.ExecPath,
				ProxyURL:    cfg.ProxyURL,
				PageTimeout: cfg.Browser.PageTimeout,
				SettleDelay: cfg.Browser.SettleDelay,
			}, logger)
		}
	}
	return nil
}

func createFetcher(sc config.SourceConfig, httpClient *http.Client, renderer browser.Renderer) (model.PageFetcher, error) {
	switch sc.Kind {
	case config.KindGreenhouse:
		return adapter.NewGreenhouseAdapter(sc.BoardToken, httpClient), nil
	case config.KindGoogle:
		return adapter.NewGoogleAdapter(sc.Query, httpClient), nil
	case config.KindLever:
		return adapter.NewLeverAdapter(sc.BoardToken, httpClient), nil
	case config.KindMeta, config.KindMicrosoft:
		if renderer == nil {
			return nil, fmt.Errorf("source %s: %s needs a browser renderer", sc.Name, sc.Kind)
		}
		if sc.Kind == config.KindMeta {
			return adapter.NewMetaAdapter(sc.URL, renderer), nil
		}
		return adapter.NewMicrosoftAdapter(sc.URL, renderer), nil
	default:
		return nil, fmt.Errorf("source %s: unsupported kind %q", sc.Name, sc.Kind)
	}
}

// pollerDeps carries what buildPollers wires into every source.
type pollerDeps struct {
	cfg            *config.Config
	detector       *detect.Detector
	notifier       model.Notifier
	httpClient     *http.Client
	renderer       browser.Renderer
	notifyFirstRun bool
	logger         *slog.Logger
}

// buildPollers wraps each adapter as retry(ratelimit(adapter)) and binds
// it to its filter and identity rules.
func buildPollers(sources []config.SourceConfig, deps pollerDeps) ([]scheduler.Poller, error) {
	limiter := ratelimit.NewBackendLimiter(0)

	var pollers []scheduler.Poller
	for _, sc := range sources {
		fetcher, err := createFetcher(sc, deps.httpClient, deps.renderer)
		if err != nil {
			return nil, err
		}
		listingFilter, err := filter.NewTitleAndLocationFilter(sc.Filters)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}

		limiter.SetDelay(sc.Kind, sc.PageDelay)
		fetcher = ratelimit.NewRateLimitedFetcher(fetcher, limiter, sc.Kind)
		fetcher = retry.NewRetryFetcher(fetcher, sc.Name, deps.cfg.Retry.MaxRetries, deps.cfg.Retry.BaseDelay, deps.logger)

		spec := detect.SourceSpec{
			Name:            sc.Name,
			Fetcher:         fetcher,
			Filter:          listingFilter,
			Rules:           sc.Rules(),
			Persist:         sc.Persist,
			MaxPages:        sc.MaxPages,
			MaxPageFailures: sc.MaxPageFailures,
		}
		pollers = append(pollers, poller.NewSourcePoller(spec, deps.detector, deps.notifier, deps.notifyFirstRun, deps.logger))
		deps.logger.Info("registered source", "name", sc.Name, "kind", sc.Kind, "key_shape", sc.KeyShape.String(), "persist", sc.Persist.String())
	}
	return pollers, nil
}
