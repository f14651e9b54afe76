package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobwatch/internal/detect"
	"github.com/amishk599/jobwatch/internal/filter"
	"github.com/amishk599/jobwatch/internal/identity"
)

// Source kinds.
const (
	KindGreenhouse = "greenhouse"
	KindGoogle     = "google"
	KindLever      = "lever"
	KindMeta       = "meta"
	KindMicrosoft  = "microsoft"
)

// Store types.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreNone   = "none"
)

// Notifier types.
const (
	NotifyLog      = "log"
	NotifySlack    = "slack"
	NotifyTelegram = "telegram"
)

// Config is the root configuration for the jobwatch poller.
type Config struct {
	PollingInterval time.Duration
	SourceDelay     time.Duration // pause between consecutive sources in a pass
	HTTPTimeout     time.Duration
	ProxyURL        string
	Store           StoreConfig
	Notification    NotificationConfig
	Retry           RetryConfig
	Browser         BrowserConfig
	Metrics         MetricsConfig
	Sources         []SourceConfig
}

// StoreConfig selects where seen sets live.
type StoreConfig struct {
	Type       string `yaml:"type"` // file, sqlite, redis or none
	Dir        string `yaml:"dir"`  // file store directory
	SQLitePath string `yaml:"sqlite_path"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisPass  string `yaml:"redis_password"`
	RedisDB    int    `yaml:"redis_db"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Enabled        bool
	Type           string // "log", "slack" or "telegram"
	WebhookURL     string // required if type is "slack"
	TelegramToken  string
	TelegramChatID string
	NotifyFirstRun bool // announce listings found while seeding an empty set
}

// RetryConfig controls page fetch retries.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// BrowserConfig configures headless Chrome for rendered sources.
type BrowserConfig struct {
	ExecPath    string
	PageTimeout time.Duration
	SettleDelay time.Duration
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string
}

// SourceConfig describes a single careers source to poll. Fields left unset
// in YAML are filled with the defaults for Kind.
type SourceConfig struct {
	Name             string
	Kind             string
	BoardToken       string            // greenhouse, lever
	Query            map[string]string // google
	URL              string            // meta, microsoft search URL template
	Enabled          bool
	KeyShape         identity.Shape
	Persist          detect.PersistMode
	RequireLocation  bool
	RequireTimestamp bool
	PageDelay        time.Duration
	MaxPages         int
	MaxPageFailures  int
	StorePath        string // file store override
	Filters          filter.Options
}

// Rules returns the identity rules for this source.
func (s SourceConfig) Rules() identity.Rules {
	return identity.Rules{
		Shape:            s.KeyShape,
		RequireLocation:  s.RequireLocation,
		RequireTimestamp: s.RequireTimestamp,
	}
}

// Rendered reports whether the source needs a browser.
func (s SourceConfig) Rendered() bool {
	return s.Kind == KindMeta || s.Kind == KindMicrosoft
}

// EnabledSources returns the sources with enabled set, in config order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// kindDefaults is the per-kind policy applied before YAML overrides.
type kindDefaults struct {
	shape            identity.Shape
	persist          detect.PersistMode
	requireLocation  bool
	requireTimestamp bool
	pageDelay        time.Duration
}

var defaultsByKind = map[string]kindDefaults{
	KindGreenhouse: {identity.ShapeTitleTimestamp, detect.PersistRewrite, true, true, time.Second},
	KindGoogle:     {identity.ShapeTitleTimestamp, detect.PersistRewrite, false, false, time.Second},
	KindLever:      {identity.ShapeTitleTimestamp, detect.PersistRewrite, false, true, time.Second},
	KindMeta:       {identity.ShapeURLTitleLocation, detect.PersistAppend, false, false, 2 * time.Second},
	KindMicrosoft:  {identity.ShapeURLTitleLocation, detect.PersistAppend, false, false, 2 * time.Second},
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	PollingInterval string                `yaml:"polling_interval"`
	SourceDelay     string                `yaml:"source_delay"`
	HTTPTimeout     string                `yaml:"http_timeout"`
	ProxyURL        string                `yaml:"proxy_url"`
	Store           StoreConfig           `yaml:"store"`
	Notification    rawNotificationConfig `yaml:"notification"`
	Retry           rawRetryConfig        `yaml:"retry"`
	Browser         rawBrowserConfig      `yaml:"browser"`
	Metrics         struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Sources []rawSourceConfig `yaml:"sources"`
}

type rawNotificationConfig struct {
	Enabled        *bool  `yaml:"enabled"`
	Type           string `yaml:"type"`
	WebhookURL     string `yaml:"webhook_url"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	NotifyFirstRun bool   `yaml:"notify_first_run"`
}

type rawRetryConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

type rawBrowserConfig struct {
	ExecPath    string `yaml:"exec_path"`
	PageTimeout string `yaml:"page_timeout"`
	SettleDelay string `yaml:"settle_delay"`
}

type rawSourceConfig struct {
	Name             string            `yaml:"name"`
	Kind             string            `yaml:"kind"`
	BoardToken       string            `yaml:"board_token"`
	Query            map[string]string `yaml:"query"`
	URL              string            `yaml:"url"`
	Enabled          *bool             `yaml:"enabled"`
	KeyShape         string            `yaml:"key_shape"`
	Persist          string            `yaml:"persist"`
	RequireLocation  *bool             `yaml:"require_location"`
	RequireTimestamp *bool             `yaml:"require_timestamp"`
	PageDelay        string            `yaml:"page_delay"`
	MaxPages         int               `yaml:"max_pages"`
	MaxPageFailures  int               `yaml:"max_page_failures"`
	StorePath        string            `yaml:"store_path"`
	Filters          rawFilterConfig   `yaml:"filters"`
}

type rawFilterConfig struct {
	TitlePattern         string   `yaml:"title_pattern"`
	TitleKeywords        []string `yaml:"title_keywords"`
	TitleExcludeKeywords []string `yaml:"title_exclude_keywords"`
	Locations            []string `yaml:"locations"`
	ExcludeLocations     []string `yaml:"exclude_locations"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// A .env file next to the config, or in the working directory, is loaded first so
// ${VAR} references can pick up secrets from it. Variables already set win.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		ProxyURL: raw.ProxyURL,
		Store:    raw.Store,
		Metrics:  MetricsConfig{Addr: raw.Metrics.Addr},
	}

	if cfg.PollingInterval, err = parseDuration("polling_interval", raw.PollingInterval, 0); err != nil {
		return nil, err
	}
	if cfg.SourceDelay, err = parseDuration("source_delay", raw.SourceDelay, 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = parseDuration("http_timeout", raw.HTTPTimeout, 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreFile
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "."
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "jobwatch.db"
	}

	cfg.Notification = NotificationConfig{
		Enabled:        raw.Notification.Enabled == nil || *raw.Notification.Enabled,
		Type:           raw.Notification.Type,
		WebhookURL:     raw.Notification.WebhookURL,
		TelegramToken:  raw.Notification.TelegramToken,
		TelegramChatID: raw.Notification.TelegramChatID,
		NotifyFirstRun: raw.Notification.NotifyFirstRun,
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = NotifyLog
	}

	cfg.Retry.MaxRetries = 2
	if raw.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *raw.Retry.MaxRetries
	}
	if cfg.Retry.BaseDelay, err = parseDuration("retry.base_delay", raw.Retry.BaseDelay, 5*time.Second); err != nil {
		return nil, err
	}

	cfg.Browser.ExecPath = raw.Browser.ExecPath
	if cfg.Browser.PageTimeout, err = parseDuration("browser.page_timeout", raw.Browser.PageTimeout, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Browser.SettleDelay, err = parseDuration("browser.settle_delay", raw.Browser.SettleDelay, 3*time.Second); err != nil {
		return nil, err
	}

	for i, rs := range raw.Sources {
		sc, err := buildSource(rs)
		if err != nil {
			return nil, fmt.Errorf("sources[%d] (%s): %w", i, rs.Name, err)
		}
		cfg.Sources = append(cfg.Sources, sc)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return d, nil
}

func buildSource(rs rawSourceConfig) (SourceConfig, error) {
	kind := strings.ToLower(strings.TrimSpace(rs.Kind))
	def, ok := defaultsByKind[kind]
	if !ok {
		return SourceConfig{}, fmt.Errorf("unknown kind %q", rs.Kind)
	}

	sc := SourceConfig{
		Name:             rs.Name,
		Kind:             kind,
		BoardToken:       rs.BoardToken,
		Query:            rs.Query,
		URL:              rs.URL,
		Enabled:          rs.Enabled == nil || *rs.Enabled,
		KeyShape:         def.shape,
		Persist:          def.persist,
		RequireLocation:  def.requireLocation,
		RequireTimestamp: def.requireTimestamp,
		MaxPages:         rs.MaxPages,
		MaxPageFailures:  rs.MaxPageFailures,
		StorePath:        rs.StorePath,
		Filters: filter.Options{
			TitlePattern:         rs.Filters.TitlePattern,
			TitleKeywords:        rs.Filters.TitleKeywords,
			TitleExcludeKeywords: rs.Filters.TitleExcludeKeywords,
			Locations:            rs.Filters.Locations,
			ExcludeLocations:     rs.Filters.ExcludeLocations,
		},
	}

	var err error
	if rs.KeyShape != "" {
		if sc.KeyShape, err = identity.ParseShape(rs.KeyShape); err != nil {
			return SourceConfig{}, err
		}
	}
	if rs.Persist != "" {
		if sc.Persist, err = detect.ParsePersistMode(rs.Persist); err != nil {
			return SourceConfig{}, err
		}
	}
	if rs.RequireLocation != nil {
		sc.RequireLocation = *rs.RequireLocation
	}
	if rs.RequireTimestamp != nil {
		sc.RequireTimestamp = *rs.RequireTimestamp
	}
	if sc.PageDelay, err = parseDuration("page_delay", rs.PageDelay, def.pageDelay); err != nil {
		return SourceConfig{}, err
	}
	if sc.MaxPages == 0 {
		sc.MaxPages = detect.DefaultMaxPages
	}
	if sc.MaxPageFailures == 0 {
		sc.MaxPageFailures = detect.DefaultMaxPageFailures
	}
	if kind == KindGoogle && len(sc.Query) == 0 {
		sc.Query = map[string]string{"q": "ai"}
	}
	return sc, nil
}

func validate(cfg *Config) error {
	if cfg.PollingInterval <= 0 {
		return fmt.Errorf("polling_interval must be positive, got %v", cfg.PollingInterval)
	}
	if cfg.SourceDelay < 0 {
		return fmt.Errorf("source_delay must not be negative, got %v", cfg.SourceDelay)
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", cfg.Retry.MaxRetries)
	}

	names := make(map[string]bool)
	enabled := 0
	for _, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("every source needs a name")
		}
		key := strings.ToLower(s.Name)
		if names[key] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		names[key] = true

		switch s.Kind {
		case KindGreenhouse, KindLever:
			if s.BoardToken == "" {
				return fmt.Errorf("source %q: board_token is required for %s", s.Name, s.Kind)
			}
		case KindMeta, KindMicrosoft:
			if !strings.HasPrefix(s.URL, "http") {
				return fmt.Errorf("source %q: url is required for %s", s.Name, s.Kind)
			}
		}
		if s.MaxPages < 0 || s.MaxPageFailures < 0 {
			return fmt.Errorf("source %q: max_pages and max_page_failures must not be negative", s.Name)
		}
		if _, err := filter.NewTitleAndLocationFilter(s.Filters); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	switch cfg.Store.Type {
	case StoreFile, StoreSQLite, StoreNone:
	case StoreRedis:
		if cfg.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required when store.type is \"redis\"")
		}
	default:
		return fmt.Errorf("unknown store.type %q", cfg.Store.Type)
	}

	n := cfg.Notification
	switch n.Type {
	case NotifyLog:
	case NotifySlack:
		if !n.Enabled {
			break
		}
		if n.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(n.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	case NotifyTelegram:
		if n.Enabled && (n.TelegramToken == "" || n.TelegramChatID == "") {
			return fmt.Errorf("notification.telegram_token and telegram_chat_id are required when type is \"telegram\"")
		}
	default:
		return fmt.Errorf("unknown notification.type %q", n.Type)
	}

	return nil
}
