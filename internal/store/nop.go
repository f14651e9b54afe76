package store

import (
	"context"

	"github.com/amishk599/jobwatch/internal/seenset"
)

// NopStore is a no-op store used by one-shot checks. It never remembers
// anything, so every matching listing appears new on each cycle.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Load(ctx context.Context, source string) (*seenset.Set, error) {
	return seenset.New(), nil
}

func (s *NopStore) Persist(ctx context.Context, source string, set *seenset.Set) error { return nil }

func (s *NopStore) Append(ctx context.Context, source string, rec seenset.Record) error { return nil }

func (s *NopStore) Close() error { return nil }
