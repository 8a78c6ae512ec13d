package orgs

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedDirectory fronts another Directory with a Redis cache for the hot
// number->org lookup. Every live webhook for a number-owned call pays this
// lookup, so it is worth caching; training sources are rare and read through.
//
// Cache failures degrade to the inner directory, never to a routing failure.

type CachedDirectory struct {
	inner Directory
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCachedDirectory(inner Directory, rdb *redis.Client, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{inner: inner, rdb: rdb, ttl: ttl}
}

func numberKey(e164 string) string { return "orgnum:" + e164 }

func (d *CachedDirectory) ResolveByNumber(ctx context.Context, e164 string) (string, error) {
	if d.rdb != nil {
		if orgID, err := d.rdb.Get(ctx, numberKey(e164)).Result(); err == nil && orgID != "" {
			return orgID, nil
		} else if err != nil && !errors.Is(err, redis.Nil) {
			// fall through to the inner directory
		}
	}

	orgID, err := d.inner.ResolveByNumber(ctx, e164)
	if err != nil {
		return "", err
	}
	if d.rdb != nil {
		_ = d.rdb.Set(ctx, numberKey(e164), orgID, d.ttl).Err()
	}
	return orgID, nil
}

func (d *CachedDirectory) TrainingSource(ctx context.Context, orgID string) (string, bool, error) {
	return d.inner.TrainingSource(ctx, orgID)
}
