package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/jobwatch/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes new listings to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each event via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs one line per event. Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(_ context.Context, events []model.NewListingEvent) error {
	for _, e := range events {
		n.logger.Info("new listing",
			"source", e.Source,
			"title", e.Title,
			"location", e.Location,
			"posted", e.Posted,
			"url", e.URL,
		)
	}
	return nil
}
