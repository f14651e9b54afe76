package model

import "context"

// RawListing is a single posting as a source presents it, before any
// normalization. Every field may be empty or malformed.
type RawListing struct {
	Title     string // posting title
	Location  string // display location
	PostedRaw string // timestamp text in the source's own format
	URL       string // canonical posting link, empty until reconstructed
}

// Page is one fetch step of a source. HasMore is false once the source has
// nothing further to yield for the current cycle.
type Page struct {
	Listings []RawListing
	HasMore  bool
}

// NewListingEvent describes a posting seen for the first time.
type NewListingEvent struct {
	Source   string
	Title    string
	Location string
	Posted   string // normalized "YYYY-MM-DD HH:MM" or "Unknown"
	URL      string
	Key      string
	FirstRun bool // detected while seeding an empty seen set
}

// PageFetcher fetches listing pages from a source. Pages are numbered from 1
// and requested in increasing order within a cycle.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (Page, error)
}

// Notifier delivers new listing events.
type Notifier interface {
	Notify(ctx context.Context, events []NewListingEvent) error
}

// ListingFilter decides whether a listing matches a source's criteria.
type ListingFilter interface {
	Match(listing RawListing) bool
}
