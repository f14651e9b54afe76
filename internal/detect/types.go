package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amishk599/jobwatch/internal/identity"
	"github.com/amishk599/jobwatch/internal/model"
	"github.com/amishk599/jobwatch/internal/seenset"
)

// Store loads and saves per-source seen sets.
type Store interface {
	// Load returns the seen set for source. Absent storage is an empty set.
	Load(ctx context.Context, source string) (*seenset.Set, error)
	// Persist rewrites the stored representation from set.
	Persist(ctx context.Context, source string, set *seenset.Set) error
	// Append stores one record immediately.
	Append(ctx context.Context, source string, rec seenset.Record) error
}

// Recorder receives a summary of every finished cycle.
type Recorder interface {
	CycleDone(res *CycleResult, err error)
}

type nopRecorder struct{}

func (nopRecorder) CycleDone(*CycleResult, error) {}

// PersistMode selects when new keys reach the store.
type PersistMode int

const (
	// PersistRewrite saves the whole set once, at the end of the cycle.
	PersistRewrite PersistMode = iota
	// PersistAppend saves each new key as soon as it is detected.
	PersistAppend
)

func (m PersistMode) String() string {
	if m == PersistAppend {
		return "append"
	}
	return "rewrite"
}

// ParsePersistMode parses the config spelling of a PersistMode.
func ParsePersistMode(s string) (PersistMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rewrite":
		return PersistRewrite, nil
	case "append":
		return PersistAppend, nil
	default:
		return 0, fmt.Errorf("unknown persist mode %q", s)
	}
}

// Outcome is what happened to one fetched listing.
type Outcome string

const (
	OutcomeNew       Outcome = "new"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFiltered  Outcome = "filtered"
	OutcomeRejected  Outcome = "rejected"
)

// Outcomes lists every Outcome in reporting order.
var Outcomes = []Outcome{OutcomeNew, OutcomeDuplicate, OutcomeFiltered, OutcomeRejected}

const (
	DefaultMaxPages        = 50
	DefaultMaxPageFailures = 3
)

// SourceSpec is everything a cycle needs to know about one source.
type SourceSpec struct {
	Name    string
	Fetcher model.PageFetcher
	Filter  model.ListingFilter // nil accepts everything
	Rules   identity.Rules
	Persist PersistMode

	// MaxPages bounds pagination. Zero means DefaultMaxPages.
	MaxPages int
	// MaxPageFailures stops pagination after this many consecutive page
	// errors. Zero means DefaultMaxPageFailures.
	MaxPageFailures int
}

// ErrSourceUnavailable is returned when the first page of a source cannot
// be fetched. Nothing is persisted and no events are produced.
var ErrSourceUnavailable = errors.New("source unavailable")

// PageError records a failed page fetch that did not abort the cycle.
type PageError struct {
	Page int
	Err  error
}

// CycleResult summarizes one cycle for one source.
type CycleResult struct {
	Source   string
	CycleID  string
	FirstRun bool

	Events     []model.NewListingEvent
	Counts     map[Outcome]int
	Rejections map[identity.Reason]int
	PageErrors []PageError

	Pages      int // pages fetched successfully
	SeenBefore int
	SeenAfter  int
	Skipped    int // malformed stored records dropped on load

	// LoadErr is set when the stored set could not be read. The cycle then
	// runs as a first run and only appends.
	LoadErr error

	// PersistErr is set when new keys could not be saved. They stay seen
	// for the rest of the process but may be reported again after a restart.
	PersistErr error
	Duration   time.Duration
}

// Status classifies the cycle for metrics and logs.
func (r *CycleResult) Status(err error) string {
	switch {
	case err != nil:
		return "failed"
	case len(r.PageErrors) > 0 || r.PersistErr != nil:
		return "partial"
	default:
		return "ok"
	}
}
