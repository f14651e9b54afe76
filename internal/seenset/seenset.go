// Package seenset holds the per-source record of listings already processed.
//
// A Set is strictly additive: records are appended, never removed or
// rewritten. Growth is unbounded by design; a seen key is never evicted.
package seenset

import (
	"slices"
	"time"

	"github.com/amishk599/jobwatch/internal/identity"
)

// Record is one seen listing.
type Record struct {
	Key      string
	Title    string
	Location string
	URL      string
	Posted   string    // normalized timestamp or identity.Unknown
	SeenAt   time.Time // first time this process saw the key; zero for legacy lines
}

// Set is an insertion-ordered set of records with O(1) membership.
// It is not safe for concurrent use; a single cycle owns it.
type Set struct {
	records []Record
	index   map[string]struct{}
	skipped int
}

// New returns an empty Set.
func New() *Set {
	return &Set{index: make(map[string]struct{})}
}

// Len returns the number of distinct keys.
func (s *Set) Len() int { return len(s.records) }

// Has reports whether key has been recorded.
func (s *Set) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Add records r and reports whether its key was new. A record whose key is
// already present is ignored; the first record for a key wins.
func (s *Set) Add(r Record) bool {
	if r.Key == "" || s.Has(r.Key) {
		return false
	}
	s.index[r.Key] = struct{}{}
	s.records = append(s.records, r)
	return true
}

// Records returns a copy of the records in insertion order.
func (s *Set) Records() []Record {
	return slices.Clone(s.records)
}

// Sorted returns a copy of the records ordered by normalized timestamp
// ascending, ties in insertion order. Unknown timestamps sort last. The order
// is for auditing only and has no bearing on membership.
func (s *Set) Sorted() []Record {
	out := slices.Clone(s.records)
	slices.SortStableFunc(out, func(a, b Record) int {
		return comparePosted(a.Posted, b.Posted)
	})
	return out
}

// Skipped returns how many malformed records were dropped while loading.
func (s *Set) Skipped() int { return s.skipped }

// MarkSkipped adds n to the malformed-record count.
func (s *Set) MarkSkipped(n int) { s.skipped += n }

func comparePosted(a, b string) int {
	au, bu := isUnknown(a), isUnknown(b)
	switch {
	case au && bu:
		return 0
	case au:
		return 1
	case bu:
		return -1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isUnknown(posted string) bool {
	return posted == "" || posted == identity.Unknown
}
