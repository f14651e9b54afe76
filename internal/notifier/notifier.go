// Package notifier delivers new listing events to operators.
package notifier

import (
	"context"
	"time"

	"github.com/amishk599/jobwatch/internal/identity"
	"github.com/amishk599/jobwatch/internal/model"
)

// messageGap spaces out consecutive chat messages within one batch.
const messageGap = 500 * time.Millisecond

// SendTestMessage sends a dummy listing to verify the integration works.
func SendTestMessage(ctx context.Context, n model.Notifier) error {
	event := model.NewListingEvent{
		Source:   "jobwatch",
		Title:    "Test Notification: Integration Verified",
		Location: "Everywhere",
		Posted:   time.Now().UTC().Format(identity.TimestampLayout),
		URL:      "https://github.com/amishk599/jobwatch",
		Key:      "test",
	}
	return n.Notify(ctx, []model.NewListingEvent{event})
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
