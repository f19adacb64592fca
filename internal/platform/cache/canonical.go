package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fatflowers/subtrack/internal/app/service/canonical"
)

const (
	// Key format: canonical:{userID}:{normalizedKey}
	canonicalKeyPrefix = "canonical:"

	// Resolutions are long-lived: canonical identities rarely change, and
	// stale entries are purged explicitly on user edits. 2 years.
	canonicalTTL = 63072000 * time.Second
)

// ResolutionCache stores resolved canonical identities in redis so the hot
// repeat-billing path skips postgres entirely.
type ResolutionCache struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

func NewResolutionCache(client *redis.Client, log *zap.SugaredLogger) *ResolutionCache {
	return &ResolutionCache{client: client, log: log}
}

func canonicalKey(userID, normalizedKey string) string {
	return fmt.Sprintf("%s%s:%s", canonicalKeyPrefix, userID, normalizedKey)
}

// canonicalUserPattern matches every cached resolution of one user.
func canonicalUserPattern(userID string) string {
	return fmt.Sprintf("%s%s:*", canonicalKeyPrefix, userID)
}

func (c *ResolutionCache) Get(ctx context.Context, userID, normalizedKey string) (*canonical.ResolvedIdentity, error) {
	raw, err := c.client.Get(ctx, canonicalKey(userID, normalizedKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read resolution cache: %w", err)
	}

	var identity canonical.ResolvedIdentity
	if err := json.Unmarshal(raw, &identity); err != nil {
		// A corrupt entry behaves like a miss; the next resolve overwrites it.
		c.log.Warnf("corrupt resolution cache entry, user_id=%s: %v", userID, err)
		return nil, nil
	}
	return &identity, nil
}

func (c *ResolutionCache) Set(ctx context.Context, userID, normalizedKey string, identity *canonical.ResolvedIdentity) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal resolved identity: %w", err)
	}
	if err := c.client.Set(ctx, canonicalKey(userID, normalizedKey), raw, canonicalTTL).Err(); err != nil {
		return fmt.Errorf("failed to write resolution cache: %w", err)
	}
	return nil
}

// Invalidate deletes one cached resolution, or every resolution for the user
// when normalizedKey is empty.
func (c *ResolutionCache) Invalidate(ctx context.Context, userID, normalizedKey string) error {
	if normalizedKey != "" {
		if err := c.client.Del(ctx, canonicalKey(userID, normalizedKey)).Err(); err != nil {
			return fmt.Errorf("failed to delete resolution cache entry: %w", err)
		}
		return nil
	}

	iter := c.client.Scan(ctx, 0, canonicalUserPattern(userID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan resolution cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete resolution cache entries: %w", err)
	}
	c.log.Infof("invalidated %d cached resolutions, user_id=%s", len(keys), userID)
	return nil
}
