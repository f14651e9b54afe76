package seenset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/amishk599/jobwatch/internal/identity"
)

// Version is the record format written by EncodeLine.
const Version = 1

// Header is written at the top of rewritten files. Lines starting with '#'
// are ignored on read, so operators can annotate files by hand.
const Header = "# jobwatch seen listings: one JSON record per line, edits are picked up on the next cycle"

// ErrMalformed is returned by DecodeLine for a line that cannot be turned
// into a record.
var ErrMalformed = errors.New("malformed seen record")

// legacySeenDate is the first-seen date layout used by plain-text files.
const legacySeenDate = "2006-01-02"

type lineRecord struct {
	V        int    `json:"v"`
	Key      string `json:"key"`
	Title    string `json:"title,omitempty"`
	Location string `json:"location,omitempty"`
	URL      string `json:"url,omitempty"`
	Posted   string `json:"posted,omitempty"`
	SeenAt   string `json:"seen_at,omitempty"`
}

// EncodeLine renders r as a single v1 line without the trailing newline.
func EncodeLine(r Record) ([]byte, error) {
	if r.Key == "" {
		return nil, fmt.Errorf("encode seen record: %w: empty key", ErrMalformed)
	}
	lr := lineRecord{
		V:        Version,
		Key:      r.Key,
		Title:    r.Title,
		Location: r.Location,
		URL:      r.URL,
		Posted:   r.Posted,
	}
	if !r.SeenAt.IsZero() {
		lr.SeenAt = r.SeenAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(lr)
}

// DecodeLine parses one line. ok is false for blank and comment lines.
// JSON lines are version 1 or later; anything else is read as a plain-text
// line written by the previous deployment ("title::timestamp" or
// "url::title — location::date").
func DecodeLine(line string) (rec Record, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Record{}, false, nil
	}
	if strings.HasPrefix(line, "{") {
		rec, err = decodeJSON(line)
	} else {
		rec, err = decodeLegacy(line)
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func decodeJSON(line string) (Record, error) {
	var lr lineRecord
	if err := json.Unmarshal([]byte(line), &lr); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if lr.Key == "" {
		return Record{}, fmt.Errorf("%w: missing key", ErrMalformed)
	}
	rec := Record{
		Key:      lr.Key,
		Title:    lr.Title,
		Location: lr.Location,
		URL:      lr.URL,
		Posted:   lr.Posted,
	}
	if rec.Posted == "" {
		rec.Posted = identity.Unknown
	}
	if lr.SeenAt != "" {
		if t, err := time.Parse(time.RFC3339, lr.SeenAt); err == nil {
			rec.SeenAt = t
		}
	}
	return rec, nil
}

func decodeLegacy(line string) (Record, error) {
	parts := strings.Split(line, identity.Separator)
	if len(parts) < 2 {
		return Record{}, fmt.Errorf("%w: no separator", ErrMalformed)
	}
	if strings.HasPrefix(parts[0], "http://") || strings.HasPrefix(parts[0], "https://") {
		return decodeLegacyURL(parts)
	}

	title := strings.Join(parts[:len(parts)-1], identity.Separator)
	posted := parts[len(parts)-1]
	if title == "" || !validPosted(posted) {
		return Record{}, fmt.Errorf("%w: bad title::timestamp line", ErrMalformed)
	}
	return Record{
		Key:    identity.Compose(identity.ShapeTitleTimestamp, "", title, "", posted),
		Title:  title,
		Posted: posted,
	}, nil
}

func decodeLegacyURL(parts []string) (Record, error) {
	url, rest := parts[0], parts[1:]

	var seenAt time.Time
	if len(rest) > 1 {
		if t, err := time.Parse(legacySeenDate, rest[len(rest)-1]); err == nil {
			seenAt = t
			rest = rest[:len(rest)-1]
		}
	}

	middle := strings.Join(rest, identity.Separator)
	i := strings.LastIndex(middle, " — ")
	if i <= 0 {
		return Record{}, fmt.Errorf("%w: bad url::title — location line", ErrMalformed)
	}
	title, location := middle[:i], middle[i+len(" — "):]
	return Record{
		Key:      identity.Compose(identity.ShapeURLTitleLocation, url, title, location, ""),
		Title:    title,
		Location: location,
		URL:      url,
		Posted:   identity.Unknown,
		SeenAt:   seenAt,
	}, nil
}

func validPosted(s string) bool {
	if s == identity.Unknown {
		return true
	}
	_, err := time.Parse(identity.TimestampLayout, s)
	return err == nil
}

// Read loads a Set from r, skipping malformed lines. Only I/O errors are
// returned.
func Read(r io.Reader) (*Set, error) {
	set := New()
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			rec, ok, derr := DecodeLine(line)
			switch {
			case derr != nil:
				set.MarkSkipped(1)
			case ok:
				set.Add(rec)
			}
		}
		if errors.Is(err, io.EOF) {
			return set, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read seen records: %w", err)
		}
	}
}

// Write renders records as a header line followed by one v1 line each.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header + "\n"); err != nil {
		return fmt.Errorf("write seen header: %w", err)
	}
	for _, r := range records {
		line, err := EncodeLine(r)
		if err != nil {
			return err
		}
		bw.Write(line)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write seen records: %w", err)
	}
	return nil
}
