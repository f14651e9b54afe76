package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/amishk599/jobwatch/internal/model"
)

// Options configures a TitleAndLocationFilter. Empty fields impose no
// constraint.
type Options struct {
	TitlePattern         string   // regular expression, matched case-insensitively
	TitleKeywords        []string // title must contain one of these
	TitleExcludeKeywords []string // title must contain none of these
	Locations            []string // location must contain one of these
	ExcludeLocations     []string // location must contain none of these
}

// TitleAndLocationFilter matches listings on title and location.
// All keyword matching is case-insensitive substring containment.
type TitleAndLocationFilter struct {
	titlePattern     *regexp.Regexp
	titleKeywords    []string
	titleExcludes    []string
	locations        []string
	excludeLocations []string
}

// NewTitleAndLocationFilter compiles opts. An invalid title pattern is an
// error.
func NewTitleAndLocationFilter(opts Options) (*TitleAndLocationFilter, error) {
	f := &TitleAndLocationFilter{
		titleKeywords:    lowerAll(opts.TitleKeywords),
		titleExcludes:    lowerAll(opts.TitleExcludeKeywords),
		locations:        lowerAll(opts.Locations),
		excludeLocations: lowerAll(opts.ExcludeLocations),
	}
	if opts.TitlePattern != "" {
		re, err := regexp.Compile("(?i)" + opts.TitlePattern)
		if err != nil {
			return nil, fmt.Errorf("compiling title pattern %q: %w", opts.TitlePattern, err)
		}
		f.titlePattern = re
	}
	return f, nil
}

// Match returns true if the listing passes every configured constraint.
// A listing without a location passes only when no allow-list is set.
func (f *TitleAndLocationFilter) Match(listing model.RawListing) bool {
	titleLower := strings.ToLower(listing.Title)
	locationLower := strings.ToLower(listing.Location)

	if f.titlePattern != nil && !f.titlePattern.MatchString(listing.Title) {
		return false
	}
	if len(f.titleKeywords) > 0 && !containsAny(titleLower, f.titleKeywords) {
		return false
	}
	if containsAny(titleLower, f.titleExcludes) {
		return false
	}
	if len(f.locations) > 0 && !containsAny(locationLower, f.locations) {
		return false
	}
	if containsAny(locationLower, f.excludeLocations) {
		return false
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

var _ model.ListingFilter = (*TitleAndLocationFilter)(nil)
