package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/amishk599/jobwatch/internal/detect"
	"github.com/amishk599/jobwatch/internal/identity"
	"github.com/amishk599/jobwatch/internal/model"
	"github.com/amishk599/jobwatch/internal/seenset"
)

// --- Mock/Fake Implementations ---

// MockFetcher returns a single canned page or an error.
type MockFetcher struct {
	Listings []model.RawListing
	Err      error
}

func (m *MockFetcher) FetchPage(_ context.Context, _ int) (model.Page, error) {
	return model.Page{Listings: m.Listings}, m.Err
}

// InMemoryStore is a map-based store for testing dedup.
type InMemoryStore struct {
	sets map[string]*seenset.Set
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sets: make(map[string]*seenset.Set)}
}

func (s *InMemoryStore) Load(_ context.Context, source string) (*seenset.Set, error) {
	set := seenset.New()
	if prev, ok := s.sets[source]; ok {
		for _, r := range prev.Records() {
			set.Add(r)
		}
	}
	return set, nil
}

func (s *InMemoryStore) Persist(_ context.Context, source string, set *seenset.Set) error {
	s.sets[source] = set
	return nil
}

func (s *InMemoryStore) Append(_ context.Context, source string, rec seenset.Record) error {
	if s.sets[source] == nil {
		s.sets[source] = seenset.New()
	}
	s.sets[source].Add(rec)
	return nil
}

func (s *InMemoryStore) seed(source, key string) {
	set := seenset.New()
	set.Add(seenset.Record{Key: key, Posted: identity.Unknown})
	s.sets[source] = set
}

// RecordingNotifier records which listings were sent to Notify.
type RecordingNotifier struct {
	Notified []model.NewListingEvent
	Err      error
}

func (n *RecordingNotifier) Notify(_ context.Context, events []model.NewListingEvent) error {
	if n.Err != nil {
		return n.Err
	}
	n.Notified = append(n.Notified, events...)
	return nil
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeListings(titles ...string) []model.RawListing {
	out := make([]model.RawListing, len(titles))
	for i, title := range titles {
		out[i] = model.RawListing{
			Title:     title,
			Location:  "Zurich, Switzerland",
			PostedRaw: "2024-01-01T09:00:00Z",
			URL:       "https://example.com/" + title,
		}
	}
	return out
}

func makePoller(fetcher model.PageFetcher, store detect.Store, notifier model.Notifier, notifyFirstRun bool) *SourcePoller {
	spec := detect.SourceSpec{
		Name:    "testco",
		Fetcher: fetcher,
		Rules:   identity.Rules{Shape: identity.ShapeTitleTimestamp, RequireLocation: true},
	}
	return NewSourcePoller(spec, detect.NewDetector(store, discardLogger()), notifier, notifyFirstRun, discardLogger())
}

// --- Tests ---

func TestPoll_NotifiesOnlyNew(t *testing.T) {
	store := NewInMemoryStore()
	store.seed("testco", "B::2024-01-01 09:00")
	notifier := &RecordingNotifier{}

	p := makePoller(&MockFetcher{Listings: makeListings("A", "B", "C")}, store, notifier, false)
	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(notifier.Notified); got != 2 {
		t.Fatalf("notified = %d, want 2", got)
	}
	if notifier.Notified[0].Title != "A" || notifier.Notified[1].Title != "C" {
		t.Errorf("notified = %+v", notifier.Notified)
	}
}

func TestPoll_FetchError(t *testing.T) {
	notifier := &RecordingNotifier{}
	p := makePoller(&MockFetcher{Err: errors.New("network down")}, NewInMemoryStore(), notifier, true)

	err := p.Poll(context.Background())
	if !errors.Is(err, detect.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if len(notifier.Notified) != 0 {
		t.Error("notifier should not be called on fetch error")
	}
}

func TestPoll_FirstRunSeedsWithoutNotifying(t *testing.T) {
	store := NewInMemoryStore() // empty = first run
	notifier := &RecordingNotifier{}
	fetcher := &MockFetcher{Listings: makeListings("A", "B")}

	p := makePoller(fetcher, store, notifier, false)
	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.Notified) != 0 {
		t.Error("notifier should not be called on first run (seeding)")
	}
	if store.sets["testco"].Len() != 2 {
		t.Errorf("seeded %d listings, want 2", store.sets["testco"].Len())
	}

	// a listing appearing afterwards is announced
	fetcher.Listings = makeListings("A", "B", "C")
	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.Notified) != 1 || notifier.Notified[0].Title != "C" {
		t.Errorf("notified = %+v", notifier.Notified)
	}
}

func TestPoll_FirstRunNotifiesWhenEnabled(t *testing.T) {
	notifier := &RecordingNotifier{}
	p := makePoller(&MockFetcher{Listings: makeListings("A")}, NewInMemoryStore(), notifier, true)

	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.Notified) != 1 || !notifier.Notified[0].FirstRun {
		t.Errorf("notified = %+v", notifier.Notified)
	}
}

func TestPoll_NotifierErrorDoesNotFailOrReplay(t *testing.T) {
	store := NewInMemoryStore()
	store.seed("testco", "seed")
	notifier := &RecordingNotifier{Err: errors.New("telegram down")}
	p := makePoller(&MockFetcher{Listings: makeListings("A")}, store, notifier, false)

	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("notifier failure should not fail the poll: %v", err)
	}

	notifier.Err = nil
	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.Notified) != 0 {
		t.Errorf("dropped notification replayed: %+v", notifier.Notified)
	}
}
