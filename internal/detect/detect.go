// Package detect runs change-detection cycles: fetch every page of a source,
// key each listing, and report the keys that were not seen before.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobwatch/internal/identity"
	"github.com/amishk599/jobwatch/internal/model"
	"github.com/amishk599/jobwatch/internal/seenset"
)

// Detector runs cycles against a Store. A Detector may be shared across
// sources as long as cycles for the same source never overlap.
type Detector struct {
	store    Store
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

// NewDetector creates a Detector that loads and saves seen sets via store.
func NewDetector(store Store, logger *slog.Logger) *Detector {
	return &Detector{
		store:    store,
		logger:   logger,
		recorder: nopRecorder{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SetRecorder installs a Recorder notified after every cycle.
func (d *Detector) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	d.recorder = r
}

// RunCycle fetches every page of spec's source and returns the listings
// whose keys were not yet in the seen set. Per-listing problems are counted
// in the result; only a failure to fetch the first page is an error.
func (d *Detector) RunCycle(ctx context.Context, spec SourceSpec) (*CycleResult, error) {
	start := d.now()
	res := &CycleResult{
		Source:     spec.Name,
		CycleID:    d.newID(),
		Counts:     make(map[Outcome]int, len(Outcomes)),
		Rejections: make(map[identity.Reason]int),
	}
	logger := d.logger.With("source", spec.Name, "cycle_id", res.CycleID)

	seen, err := d.store.Load(ctx, spec.Name)
	if err != nil {
		logger.Warn("seen set unreadable, starting empty", "error", err)
		seen = seenset.New()
		res.LoadErr = err
		// A rewrite would replace the unreadable records with this cycle's
		// keys alone; append the new ones instead.
		spec.Persist = PersistAppend
	}
	if n := seen.Skipped(); n > 0 {
		logger.Warn("skipped malformed seen records", "count", n)
	}
	res.SeenBefore = seen.Len()
	res.Skipped = seen.Skipped()
	res.FirstRun = seen.Len() == 0

	err = d.fetchPages(ctx, spec, seen, res, logger)
	res.SeenAfter = seen.Len()
	res.Duration = d.now().Sub(start)
	if err != nil {
		d.recorder.CycleDone(res, err)
		return res, err
	}

	if spec.Persist == PersistRewrite && res.Pages > 0 {
		// Keys are already in memory; losing them on shutdown would
		// re-notify after restart.
		if perr := d.store.Persist(context.WithoutCancel(ctx), spec.Name, seen); perr != nil {
			logger.Error("persisting seen set failed", "error", perr)
			res.PersistErr = errors.Join(res.PersistErr, perr)
		}
	}

	logger.Info("cycle complete",
		"pages", res.Pages,
		"new", res.Counts[OutcomeNew],
		"duplicate", res.Counts[OutcomeDuplicate],
		"filtered", res.Counts[OutcomeFiltered],
		"rejected", res.Counts[OutcomeRejected],
		"page_errors", len(res.PageErrors),
		"seen", res.SeenAfter,
	)
	d.recorder.CycleDone(res, nil)
	return res, nil
}

func (d *Detector) fetchPages(ctx context.Context, spec SourceSpec, seen *seenset.Set, res *CycleResult, logger *slog.Logger) error {
	maxPages := spec.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	maxFailures := spec.MaxPageFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxPageFailures
	}

	failures := 0
	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			logger.Info("cycle interrupted", "page", page)
			break
		}

		p, err := spec.Fetcher.FetchPage(ctx, page)
		if err != nil {
			res.PageErrors = append(res.PageErrors, PageError{Page: page, Err: err})
			if page == 1 {
				return fmt.Errorf("%w: %s page 1: %w", ErrSourceUnavailable, spec.Name, err)
			}
			failures++
			logger.Warn("page fetch failed", "page", page, "error", err)
			if failures >= maxFailures {
				logger.Warn("too many consecutive page errors, ending cycle", "failures", failures)
				break
			}
			continue
		}
		failures = 0
		res.Pages++

		for _, raw := range p.Listings {
			d.process(ctx, spec, seen, raw, res, logger)
		}
		if !p.HasMore {
			break
		}
	}
	return nil
}

func (d *Detector) process(ctx context.Context, spec SourceSpec, seen *seenset.Set, raw model.RawListing, res *CycleResult, logger *slog.Logger) {
	if spec.Filter != nil && !spec.Filter.Match(raw) {
		res.Counts[OutcomeFiltered]++
		return
	}

	id, err := identity.Build(raw, spec.Rules)
	if err != nil {
		res.Counts[OutcomeRejected]++
		var rej *identity.RejectedError
		if errors.As(err, &rej) {
			res.Rejections[rej.Reason]++
		}
		logger.Debug("listing rejected", "title", raw.Title, "error", err)
		return
	}

	if seen.Has(id.Key) {
		res.Counts[OutcomeDuplicate]++
		return
	}

	rec := seenset.Record{
		Key:      id.Key,
		Title:    id.Title,
		Location: id.Location,
		URL:      id.URL,
		Posted:   id.Posted,
		SeenAt:   d.now().UTC(),
	}
	seen.Add(rec)
	res.Counts[OutcomeNew]++
	res.Events = append(res.Events, model.NewListingEvent{
		Source:   spec.Name,
		Title:    id.Title,
		Location: id.Location,
		Posted:   id.Posted,
		URL:      id.URL,
		Key:      id.Key,
		FirstRun: res.FirstRun,
	})

	if spec.Persist == PersistAppend {
		if err := d.store.Append(context.WithoutCancel(ctx), spec.Name, rec); err != nil {
			logger.Error("appending seen record failed", "key", id.Key, "error", err)
			res.PersistErr = errors.Join(res.PersistErr, err)
		}
	}
}
