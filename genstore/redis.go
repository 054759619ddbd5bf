package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGenStore keeps tag generations in redis, so every cache pointed at
// the same namespace sees the same bumps, across processes and restarts.
//
// Generation keys are "gen:<namespace>:<tag>". Without a TTL they live
// forever and an untouched tag reads as 0.
//
// With WithGenTTL a key expires some time after it was created or bumped,
// and the next reader or bumper must not see a generation that was handed
// out before. So under a TTL a missing key is first seeded (SET NX) with
// the clock in unix nanoseconds, and a bump increments from that seed. A
// reseeded tag starts above every value of its previous life, which turns
// every value written under that life into a miss.
type RedisGenStore struct {
	rdb   redis.UniversalClient
	ns    string
	ttl   time.Duration
	owned bool
	now   func() time.Time
}

var _ GenStore = (*RedisGenStore)(nil)

type RedisOption func(*RedisGenStore)

// WithGenTTL refreshes a TTL on a tag's key at every bump. ttl <= 0 disables it.
func WithGenTTL(ttl time.Duration) RedisOption {
	return func(s *RedisGenStore) { s.ttl = ttl }
}

// WithOwnedClient makes Close also close the client. Use it only when the
// store is the client's sole user.
func WithOwnedClient() RedisOption {
	return func(s *RedisGenStore) { s.owned = true }
}

// WithGenClock replaces time.Now as the source of seed generations.
func WithGenClock(now func() time.Time) RedisOption {
	return func(s *RedisGenStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewRedisGenStore(client redis.UniversalClient, namespace string, opts ...RedisOption) *RedisGenStore {
	s := &RedisGenStore{rdb: client, ns: namespace, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *RedisGenStore) key(tag string) string { return "gen:" + s.ns + ":" + tag }

func (s *RedisGenStore) seed() string {
	return strconv.FormatInt(s.now().UnixNano(), 10)
}

func (s *RedisGenStore) Snapshot(ctx context.Context, tag string) (uint64, error) {
	gens, err := s.SnapshotMany(ctx, []string{tag})
	if err != nil {
		return 0, err
	}
	return gens[tag], nil
}

// SnapshotMany reads every tag with one MGET; missing tags map to 0.
func (s *RedisGenStore) SnapshotMany(ctx context.Context, tags []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(tags))
	if len(tags) == 0 {
		return out, nil
	}
	rkeys := make([]string, len(tags))
	for i, tag := range tags {
		rkeys[i] = s.key(tag)
	}
	vals, err := s.rdb.MGet(ctx, rkeys...).Result()
	if err != nil {
		return nil, err
	}
	var missing []int
	for i, v := range vals {
		if v == nil && s.ttl > 0 {
			missing = append(missing, i)
			continue
		}
		n, err := parseGen(v)
		if err != nil {
			return nil, fmt.Errorf("genstore: tag %q: %w", tags[i], err)
		}
		out[tags[i]] = n
	}
	if len(missing) > 0 {
		if err := s.seedMissing(ctx, tags, rkeys, missing, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// seedMissing seeds the expired or never-seen tags at idx and reads back
// whatever value won, which may be another client's seed or bump.
func (s *RedisGenStore) seedMissing(ctx context.Context, tags, rkeys []string, idx []int, out map[string]uint64) error {
	seed := s.seed()
	gets := make([]*redis.StringCmd, len(idx))
	if _, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for j, i := range idx {
			p.SetNX(ctx, rkeys[i], seed, s.ttl)
			gets[j] = p.Get(ctx, rkeys[i])
		}
		return nil
	}); err != nil {
		return err
	}
	for j, i := range idx {
		n, err := strconv.ParseUint(gets[j].Val(), 10, 64)
		if err != nil {
			return fmt.Errorf("genstore: tag %q: %w", tags[i], err)
		}
		out[tags[i]] = n
	}
	return nil
}

func parseGen(v any) (uint64, error) {
	switch vv := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseUint(vv, 10, 64)
	case []byte:
		return strconv.ParseUint(string(vv), 10, 64)
	}
	return 0, fmt.Errorf("unexpected generation type %T", v)
}

// Bump runs INCR. Under a TTL it runs in one MULTI with the seed and the
// EXPIRE refresh.
func (s *RedisGenStore) Bump(ctx context.Context, tag string) (uint64, error) {
	k := s.key(tag)
	if s.ttl <= 0 {
		n, err := s.rdb.Incr(ctx, k).Result()
		return uint64(n), err
	}
	var incr *redis.IntCmd
	if _, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, k, s.seed(), s.ttl)
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	}); err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is a no-op; redis expires generation keys itself.
func (s *RedisGenStore) Cleanup(time.Duration) {}

func (s *RedisGenStore) Close(context.Context) error {
	if !s.owned {
		return nil
	}
	if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
