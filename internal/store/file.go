package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amishk599/jobwatch/internal/seenset"
)

// FileStore keeps one JSON-lines file per source under a directory.
type FileStore struct {
	dir   string
	paths map[string]string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, paths: make(map[string]string)}
}

// SetPath overrides the file used for source. Used to keep reading files
// left by an earlier deployment at their original location.
func (s *FileStore) SetPath(source, path string) {
	s.paths[source] = path
}

// Path returns the file backing source.
func (s *FileStore) Path(source string) string {
	if p, ok := s.paths[source]; ok {
		return p
	}
	return filepath.Join(s.dir, "seen_"+Slug(source)+".jsonl")
}

// Slug lowercases source and replaces every run of characters outside
// [a-z0-9] with a single underscore.
func Slug(source string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(source) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Load reads the seen set for source. A missing file is an empty set.
func (s *FileStore) Load(ctx context.Context, source string) (*seenset.Set, error) {
	f, err := os.Open(s.Path(source))
	if errors.Is(err, os.ErrNotExist) {
		return seenset.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening seen file for %s: %w", source, err)
	}
	defer f.Close()

	set, err := seenset.Read(f)
	if err != nil {
		return nil, fmt.Errorf("loading seen file for %s: %w", source, err)
	}
	return set, nil
}

// Persist atomically replaces the file for source with the sorted contents
// of set. A crash mid-write leaves the previous file intact.
func (s *FileStore) Persist(ctx context.Context, source string, set *seenset.Set) error {
	path := s.Path(source)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating seen dir for %s: %w", source, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp seen file for %s: %w", source, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := seenset.Write(tmp, set.Sorted()); err != nil {
		return fmt.Errorf("writing seen file for %s: %w", source, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing seen file for %s: %w", source, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing seen file for %s: %w", source, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing seen file for %s: %w", source, err)
	}
	committed = true
	return nil
}

// Append adds one record to the end of the file for source and syncs it.
func (s *FileStore) Append(ctx context.Context, source string, rec seenset.Record) error {
	line, err := seenset.EncodeLine(rec)
	if err != nil {
		return err
	}

	path := s.Path(source)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating seen dir for %s: %w", source, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening seen file for %s: %w", source, err)
	}
	defer f.Close()

	prefix, err := appendPrefix(f)
	if err != nil {
		return fmt.Errorf("inspecting seen file for %s: %w", source, err)
	}
	buf := make([]byte, 0, len(prefix)+len(line)+1)
	buf = append(buf, prefix...)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("appending to seen file for %s: %w", source, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing seen file for %s: %w", source, err)
	}
	return nil
}

// appendPrefix returns what must precede a new line: the header for an
// empty file, a newline when the last line was left unterminated.
func appendPrefix(f *os.File) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() == 0 {
		return seenset.Header + "\n", nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if last[0] != '\n' {
		return "\n", nil
	}
	return "", nil
}

func (s *FileStore) Close() error { return nil }
