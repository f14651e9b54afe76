package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amishk599/jobwatch/internal/model"
)

const (
	telegramBaseURL = "https://api.telegram.org"
	telegramTimeout = 10 * time.Second
)

// ErrMissingCredentials is returned when a Telegram token or chat id is unset.
var ErrMissingCredentials = errors.New("telegram token and chat id are required")

// Ensure TelegramNotifier implements model.Notifier.
var _ model.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier posts one bot message per event.
type TelegramNotifier struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	gap        time.Duration
}

// NewTelegramNotifier returns a notifier for the given bot token and chat.
// A nil httpClient gets one with a 10s timeout.
func NewTelegramNotifier(token, chatID string, httpClient *http.Client, logger *slog.Logger) (*TelegramNotifier, error) {
	if token == "" || chatID == "" {
		return nil, ErrMissingCredentials
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: telegramTimeout}
	}
	return &TelegramNotifier{
		token:      token,
		chatID:     chatID,
		baseURL:    telegramBaseURL,
		httpClient: httpClient,
		logger:     logger,
		gap:        messageGap,
	}, nil
}

// Notify sends every event. Like Slack, it fails only when nothing got through.
func (n *TelegramNotifier) Notify(ctx context.Context, events []model.NewListingEvent) error {
	if len(events) == 0 {
		return nil
	}

	failures := 0
	for i, e := range events {
		if i > 0 {
			if err := sleep(ctx, n.gap); err != nil {
				return err
			}
		}
		if err := n.send(ctx, telegramText(e)); err != nil {
			n.logger.Error("telegram notification failed", "source", e.Source, "title", e.Title, "error", err)
			failures++
		}
	}
	if failures == len(events) {
		return fmt.Errorf("all %d telegram notifications failed", failures)
	}
	n.logger.Info("telegram notifications complete", "sent", len(events)-failures, "failed", failures)
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	form := url.Values{
		"chat_id":              {n.chatID},
		"text":                 {text},
		"disable_notification": {"false"},
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)

	ctx, cancel := context.WithTimeout(ctx, telegramTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		// The request URL embeds the bot token; keep it out of logs.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("post to telegram: %w", urlErr.Err)
		}
		return fmt.Errorf("post to telegram: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned %d", resp.StatusCode)
	}
	return nil
}

func telegramText(e model.NewListingEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📢 %s: 🔹 %s — %s\n🕒 %s", capitalize(e.Source), e.Title, e.Location, e.Posted)
	if e.URL != "" {
		fmt.Fprintf(&b, "\n🔗 %s", e.URL)
	}
	return b.String()
}
