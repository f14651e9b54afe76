// Package identity derives stable deduplication keys from raw listings.
//
// A key is a pure function of a listing's normalized fields: the same posting
// re-fetched on a later cycle, possibly re-rendered with different spacing,
// produces the same key.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amishk599/jobwatch/internal/model"
)

// Separator joins key fields. Field content is escaped so the separator only
// ever appears as a field boundary.
const Separator = "::"

// locationJoiner sits between title and location in URL-shaped keys.
const locationJoiner = " — "

// Shape selects which fields make up a key. The two shapes are never
// compared against each other; each source uses exactly one.
type Shape int

const (
	// ShapeTitleTimestamp keys on title::normalizedTimestamp. Used by sources
	// without a stable canonical URL.
	ShapeTitleTimestamp Shape = iota
	// ShapeURLTitleLocation keys on url::title — location.
	ShapeURLTitleLocation
)

func (s Shape) String() string {
	switch s {
	case ShapeTitleTimestamp:
		return "title_timestamp"
	case ShapeURLTitleLocation:
		return "url_title_location"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ParseShape parses the config spelling of a Shape.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "title_timestamp":
		return ShapeTitleTimestamp, nil
	case "url_title_location":
		return ShapeURLTitleLocation, nil
	default:
		return 0, fmt.Errorf("unknown key shape %q", s)
	}
}

// Rules holds the per-source key derivation policy. A title is always
// required; location and timestamp only when the source opts in.
type Rules struct {
	Shape            Shape
	RequireLocation  bool
	RequireTimestamp bool
}

// Reason names why a listing was rejected.
type Reason string

const (
	ReasonMissingTitle     Reason = "missing_title"
	ReasonMissingLocation  Reason = "missing_location"
	ReasonMissingTimestamp Reason = "missing_timestamp"
	ReasonMissingURL       Reason = "missing_url"
)

// ErrRejected matches every *RejectedError via errors.Is.
var ErrRejected = errors.New("listing rejected")

// RejectedError reports a listing too incomplete to key reliably. Rejections
// are not retried: a refetch reproduces the same record.
type RejectedError struct {
	Reason Reason
}

func (e *RejectedError) Error() string {
	return "listing rejected: " + string(e.Reason)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Identity is a keyed listing with its normalized fields.
type Identity struct {
	Key      string
	Title    string
	Location string
	URL      string
	Posted   string // normalized timestamp or Unknown
}

// Build derives the identity of raw under rules. It has no side effects and
// returns a *RejectedError when a required field is missing.
func Build(raw model.RawListing, rules Rules) (Identity, error) {
	id := Identity{
		Title:    collapseSpace(raw.Title),
		Location: collapseSpace(raw.Location),
		URL:      strings.TrimSpace(raw.URL),
	}
	postedRaw := strings.TrimSpace(raw.PostedRaw)

	switch {
	case id.Title == "":
		return Identity{}, &RejectedError{Reason: ReasonMissingTitle}
	case rules.RequireLocation && id.Location == "":
		return Identity{}, &RejectedError{Reason: ReasonMissingLocation}
	case rules.RequireTimestamp && postedRaw == "":
		return Identity{}, &RejectedError{Reason: ReasonMissingTimestamp}
	case rules.Shape == ShapeURLTitleLocation && id.URL == "":
		return Identity{}, &RejectedError{Reason: ReasonMissingURL}
	}

	id.Posted = NormalizeTimestamp(postedRaw)
	id.Key = Compose(rules.Shape, id.URL, id.Title, id.Location, id.Posted)
	return id, nil
}

// Compose joins already-normalized fields into a key of the given shape.
// Only fields followed by a separator need escaping; the last field is
// written verbatim.
func Compose(shape Shape, url, title, location, posted string) string {
	if shape == ShapeURLTitleLocation {
		return escape(url, "") + Separator + escape(title, "—") + locationJoiner + location
	}
	return escape(title, "") + Separator + posted
}

// escape backslash-escapes s so that it never contains an unescaped "::"
// and never ends in an unescaped ':'. Runes in extra are always escaped.
func escape(s, extra string) string {
	if !strings.ContainsAny(s, `\:`+extra) {
		return s
	}
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		switch {
		case r == '\\', strings.ContainsRune(extra, r):
			b.WriteRune('\\')
		case r == ':' && (i == len(runes)-1 || runes[i+1] == ':'):
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
