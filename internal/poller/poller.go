package poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobwatch/internal/detect"
	"github.com/amishk599/jobwatch/internal/model"
)

// SourcePoller owns the poll pipeline for a single source:
// detect cycle → first-run policy → notify.
type SourcePoller struct {
	spec           detect.SourceSpec
	detector       *detect.Detector
	notifier       model.Notifier
	notifyFirstRun bool
	logger         *slog.Logger
}

// NewSourcePoller creates a poller wired with all its dependencies. When
// notifyFirstRun is false, listings found while seeding an empty seen set
// are recorded but not sent.
func NewSourcePoller(
	spec detect.SourceSpec,
	detector *detect.Detector,
	notifier model.Notifier,
	notifyFirstRun bool,
	logger *slog.Logger,
) *SourcePoller {
	return &SourcePoller{
		spec:           spec,
		detector:       detector,
		notifier:       notifier,
		notifyFirstRun: notifyFirstRun,
		logger:         logger,
	}
}

// Name returns the source name.
func (p *SourcePoller) Name() string { return p.spec.Name }

// Poll runs one cycle and hands new listings to the notifier. Notifier
// failures are logged and dropped; the listings stay seen.
func (p *SourcePoller) Poll(ctx context.Context) error {
	res, err := p.detector.RunCycle(ctx, p.spec)
	if err != nil {
		return fmt.Errorf("polling %s: %w", p.spec.Name, err)
	}
	if len(res.Events) == 0 {
		return nil
	}

	logger := p.logger.With("source", p.spec.Name, "cycle_id", res.CycleID)
	if res.FirstRun && !p.notifyFirstRun {
		logger.Info("first run, seeded seen set without notifying", "listings", len(res.Events))
		return nil
	}

	if err := p.notifier.Notify(ctx, res.Events); err != nil {
		logger.Error("notify failed", "listings", len(res.Events), "error", err)
		return nil
	}
	logger.Info("notified new listings", "listings", len(res.Events))
	return nil
}
