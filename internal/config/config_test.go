package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/jobwatch/internal/detect"
	"github.com/amishk599/jobwatch/internal/identity"
	"github.com/amishk599/jobwatch/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
polling_interval: 10m
source_delay: 2s
sources:
  - name: DeepMind
    kind: greenhouse
    board_token: deepmind
    filters:
      title_pattern: '\b(engineer|scientist)\b'
      locations: ["Zurich, Switzerland", "Mountain View, California, US"]
  - name: Microsoft
    kind: microsoft
    url: "https://jobs.careers.microsoft.com/global/en/search?q=ai&pg={page}"
    enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollingInterval != 10*time.Minute {
		t.Errorf("PollingInterval = %v, want 10m", cfg.PollingInterval)
	}
	if cfg.SourceDelay != 2*time.Second {
		t.Errorf("SourceDelay = %v, want 2s", cfg.SourceDelay)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("Sources = %+v", cfg.Sources)
	}

	dm := cfg.Sources[0]
	if !dm.Enabled {
		t.Error("enabled should default to true")
	}
	if dm.KeyShape != identity.ShapeTitleTimestamp || dm.Persist != detect.PersistRewrite {
		t.Errorf("greenhouse defaults: shape=%v persist=%v", dm.KeyShape, dm.Persist)
	}
	if !dm.RequireLocation || !dm.RequireTimestamp {
		t.Error("greenhouse should require location and timestamp by default")
	}
	if dm.MaxPages != detect.DefaultMaxPages || dm.MaxPageFailures != detect.DefaultMaxPageFailures {
		t.Errorf("page limits = %d/%d", dm.MaxPages, dm.MaxPageFailures)
	}
	if len(dm.Filters.Locations) != 2 {
		t.Errorf("Locations = %v", dm.Filters.Locations)
	}

	ms := cfg.Sources[1]
	if ms.Enabled {
		t.Error("microsoft should be disabled")
	}
	if ms.KeyShape != identity.ShapeURLTitleLocation || ms.Persist != detect.PersistAppend || !ms.Rendered() {
		t.Errorf("microsoft defaults: %+v", ms)
	}
	if got := cfg.EnabledSources(); len(got) != 1 || got[0].Name != "DeepMind" {
		t.Errorf("EnabledSources = %+v", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
polling_interval: 5m
sources:
  - name: google
    kind: google
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Type != StoreFile || cfg.Store.Dir != "." {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Notification.Type != NotifyLog || !cfg.Notification.Enabled {
		t.Errorf("Notification = %+v", cfg.Notification)
	}
	if cfg.Retry.MaxRetries != 2 || cfg.Retry.BaseDelay != 5*time.Second {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.Browser.PageTimeout != 30*time.Second || cfg.Browser.SettleDelay != 3*time.Second {
		t.Errorf("Browser = %+v", cfg.Browser)
	}
	if q := cfg.Sources[0].Query; q["q"] != "ai" {
		t.Errorf("google query default = %v", q)
	}
}

func TestLoad_SourceOverrides(t *testing.T) {
	path := writeConfig(t, `
polling_interval: 5m
retry:
  max_retries: 0
sources:
  - name: acme
    kind: lever
    board_token: acme
    key_shape: url_title_location
    persist: append
    require_location: true
    require_timestamp: false
    page_delay: 500ms
    max_pages: 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Sources[0]
	if s.KeyShape != identity.ShapeURLTitleLocation || s.Persist != detect.PersistAppend {
		t.Errorf("overrides not applied: %+v", s)
	}
	rules := s.Rules()
	if !rules.RequireLocation || rules.RequireTimestamp {
		t.Errorf("Rules = %+v", rules)
	}
	if s.PageDelay != 500*time.Millisecond || s.MaxPages != 3 {
		t.Errorf("PageDelay=%v MaxPages=%d", s.PageDelay, s.MaxPages)
	}
	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("explicit max_retries 0 overridden: %d", cfg.Retry.MaxRetries)
	}
}

func TestLoad_EnvExpansionAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("JOBWATCH_TEST_CHAT=4242\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JOBWATCH_TEST_TOKEN", "123:abc")
	t.Cleanup(func() { os.Unsetenv("JOBWATCH_TEST_CHAT") })

	path := filepath.Join(dir, "config.yaml")
	content := `
polling_interval: 5m
notification:
  type: telegram
  telegram_token: ${JOBWATCH_TEST_TOKEN}
  telegram_chat_id: ${JOBWATCH_TEST_CHAT}
sources:
  - name: deepmind
    kind: greenhouse
    board_token: deepmind
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notification.TelegramToken != "123:abc" {
		t.Errorf("token = %q", cfg.Notification.TelegramToken)
	}
	if cfg.Notification.TelegramChatID != "4242" {
		t.Errorf("chat id = %q (from .env)", cfg.Notification.TelegramChatID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "polling_interval: [broken")); err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	const source = `
sources:
  - name: deepmind
    kind: greenhouse
    board_token: deepmind
`
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"zero interval", "polling_interval: 0\n" + source, "polling_interval"},
		{"bad duration", "polling_interval: soon\n" + source, "polling_interval"},
		{"no sources", "polling_interval: 5m\n", "at least one source"},
		{"all disabled", `
polling_interval: 5m
sources:
  - {name: a, kind: google, enabled: false}
`, "at least one source"},
		{"unknown kind", `
polling_interval: 5m
sources:
  - {name: a, kind: workday}
`, "unknown kind"},
		{"missing board token", `
polling_interval: 5m
sources:
  - {name: a, kind: greenhouse}
`, "board_token"},
		{"missing url", `
polling_interval: 5m
sources:
  - {name: a, kind: meta}
`, "url is required"},
		{"duplicate names", `
polling_interval: 5m
sources:
  - {name: Google, kind: google}
  - {name: google, kind: google}
`, "duplicate"},
		{"bad pattern", `
polling_interval: 5m
sources:
  - name: a
    kind: google
    filters: {title_pattern: "(unclosed"}
`, "title pattern"},
		{"bad key shape", `
polling_interval: 5m
sources:
  - {name: a, kind: google, key_shape: hash}
`, "key shape"},
		{"slack without webhook", "polling_interval: 5m\nnotification: {type: slack}\n" + source, "webhook_url"},
		{"slack wrong host", "polling_interval: 5m\nnotification: {type: slack, webhook_url: 'https://example.com/x'}\n" + source, "hooks.slack.com"},
		{"telegram without creds", "polling_interval: 5m\nnotification: {type: telegram}\n" + source, "telegram_token"},
		{"unknown notifier", "polling_interval: 5m\nnotification: {type: email}\n" + source, "notification.type"},
		{"redis without addr", "polling_interval: 5m\nstore: {type: redis}\n" + source, "redis_addr"},
		{"unknown store", "polling_interval: 5m\nstore: {type: s3}\n" + source, "store.type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load: expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_DisabledNotificationSkipsCredentialCheck(t *testing.T) {
	path := writeConfig(t, `
polling_interval: 5m
notification:
  enabled: false
  type: telegram
sources:
  - {name: a, kind: google}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notification.Enabled {
		t.Error("Enabled should be false")
	}
}

func TestLoad_GoogleKeysUndatedListings(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
polling_interval: 5m
sources:
  - {name: google, kind: google}
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rules := cfg.Sources[0].Rules()
	if rules.RequireTimestamp {
		t.Fatal("google should not require a timestamp")
	}

	id, err := identity.Build(model.RawListing{
		Title:    "ML Engineer",
		Location: "Toronto, Canada",
		URL:      "https://careers.google.com/jobs/1",
	}, rules)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if id.Key != "ML Engineer::Unknown" {
		t.Errorf("Key = %q, want %q", id.Key, "ML Engineer::Unknown")
	}
}
