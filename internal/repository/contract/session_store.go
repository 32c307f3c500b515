package contract

import (
	"context"
	"time"
)

// ScoredMember is one sorted-set entry.
type ScoredMember struct {
	Member string
	Score  float64
}

// SessionStore is the key-value contract the session manager and message ledger
// are written against. Implementations must be safe for concurrent use.
type SessionStore interface {
	// Get reports found=false for a missing key rather than an error.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set with ttl <= 0 stores the key without expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	// Delete ignores keys that do not exist.
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Incr(ctx context.Context, key string) (int64, error)

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	ZAdd(ctx context.Context, key string, member string, score float64) error
	// ZRange returns members ascending by score, ties broken by member.
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	Scan(ctx context.Context, pattern string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
