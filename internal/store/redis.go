package store

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/amishk599/jobwatch/internal/seenset"
)

const defaultRedisPrefix = "jobwatch:seen:"

// pushIfNew appends ARGV[2] to the record list only when ARGV[1] was not yet
// a member of the key set. Both keys live in the same hash slot.
var pushIfNew = goredis.NewScript(`
if redis.call('SADD', KEYS[2], ARGV[1]) == 1 then
	redis.call('RPUSH', KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// RedisStore keeps each source's seen set as a list of encoded records plus
// a set of keys for membership.
type RedisStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client. The caller owns the client unless
// Close is called.
func NewRedisStore(client goredis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: defaultRedisPrefix}
}

// DialRedis connects to a single Redis server and verifies it with a ping.
func DialRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return NewRedisStore(client), nil
}

// Braces make the list and the key set hash to the same cluster slot.
func (r *RedisStore) keyList(source string) string {
	return r.prefix + "{" + Slug(source) + "}"
}

func (r *RedisStore) keySet(source string) string {
	return r.keyList(source) + ":keys"
}

// Load reads every stored record for source in insertion order.
func (r *RedisStore) Load(ctx context.Context, source string) (*seenset.Set, error) {
	lines, err := r.client.LRange(ctx, r.keyList(source), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading seen list for %s: %w", source, err)
	}
	set := seenset.New()
	for _, line := range lines {
		rec, ok, err := seenset.DecodeLine(line)
		if err != nil {
			set.MarkSkipped(1)
			continue
		}
		if ok {
			set.Add(rec)
		}
	}
	return set, nil
}

// Persist pushes every record of set whose key is not stored yet, in
// detection order.
func (r *RedisStore) Persist(ctx context.Context, source string, set *seenset.Set) error {
	for _, rec := range set.Records() {
		if err := r.Append(ctx, source, rec); err != nil {
			return err
		}
	}
	return nil
}

// Append stores rec unless its key is already present.
func (r *RedisStore) Append(ctx context.Context, source string, rec seenset.Record) error {
	line, err := seenset.EncodeLine(rec)
	if err != nil {
		return err
	}
	keys := []string{r.keyList(source), r.keySet(source)}
	if err := pushIfNew.Run(ctx, r.client, keys, rec.Key, string(line)).Err(); err != nil {
		return fmt.Errorf("storing %s for %s: %w", rec.Key, source, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
