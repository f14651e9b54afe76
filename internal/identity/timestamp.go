package identity

import (
	"strconv"
	"strings"
	"time"
)

// Unknown replaces a timestamp that is absent or cannot be parsed. The record
// is still keyed, so sources that never expose a parseable date stay stable
// across refetches as long as their other fields are.
const Unknown = "Unknown"

// TimestampLayout is the canonical minute-precision form.
const TimestampLayout = "2006-01-02 15:04"

// timestampLayouts are tried in order. Zoned layouts come first so an offset,
// when present, is honoured rather than silently dropped.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006",
	"January 2, 2006",
}

// NormalizeTimestamp parses a source-supplied timestamp and formats it as
// "YYYY-MM-DD HH:MM" in the timestamp's own offset. Sub-minute precision is
// discarded. Unparseable or empty input yields Unknown.
func NormalizeTimestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unknown
	}
	if t, ok := parseUnix(raw); ok {
		return t.Format(TimestampLayout)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(TimestampLayout)
		}
	}
	return Unknown
}

// parseUnix accepts Unix seconds (10 digits) or milliseconds (13 digits).
func parseUnix(raw string) (time.Time, bool) {
	if len(raw) != 10 && len(raw) != 13 {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	if len(raw) == 13 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
