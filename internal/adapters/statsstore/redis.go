package statsstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Amund211/askbox/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStatsStore counts ask outcomes in redis hashes
//
// <prefix>:total holds cumulative counts and never expires.
// <prefix>:minute:<yyyymmddhhmm> holds per-minute counts and expires after ttl.
type RedisStatsStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisStatsOption func(*RedisStatsStore)

func WithPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithTTL(ttl time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.ttl = ttl
	}
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "askbox:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) totalKey() string {
	return s.prefix + ":total"
}

func (s *RedisStatsStore) minuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func (s *RedisStatsStore) Record(ctx context.Context, event domain.AskEvent) error {
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(event.Outcome)
	minuteKey := s.minuteKey(at)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)
	pipe.HIncrBy(ctx, minuteKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, minuteKey, s.ttl)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", field, err)
	}
	return nil
}

// Totals returns the cumulative count per outcome
func (s *RedisStatsStore) Totals(ctx context.Context) (map[domain.AskOutcome]int64, error) {
	return s.read(ctx, s.totalKey())
}

// Minute returns the counts for the minute containing at
func (s *RedisStatsStore) Minute(ctx context.Context, at time.Time) (map[domain.AskOutcome]int64, error) {
	return s.read(ctx, s.minuteKey(at))
}

func (s *RedisStatsStore) read(ctx context.Context, key string) (map[domain.AskOutcome]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	counts := make(map[domain.AskOutcome]int64, len(raw))
	for field, value := range raw {
		var count int64
		if _, err := fmt.Sscan(value, &count); err != nil {
			return nil, fmt.Errorf("invalid count %q for %s in %s: %w", value, field, key, err)
		}
		counts[domain.AskOutcome(field)] = count
	}
	return counts, nil
}
