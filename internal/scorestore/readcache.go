package scorestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/common/metrics"
	"follicle-match/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheName = "score"

// CacheKey is the redis key of one cached score.
func CacheKey(userID string, ref models.EntityRef) string {
	return fmt.Sprintf("score:%s:%s:%s", userID, ref.Type, ref.ID)
}

// readCache fronts score documents for batch reads. A nil client disables
// it; every method then behaves as a miss.
type readCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// getMany returns the cached scores by entity id.
func (c *readCache) getMany(ctx context.Context, userID string, et models.EntityType, ids []string) (map[string]models.MatchScore, error) {
	found := make(map[string]models.MatchScore, len(ids))
	if c.rdb == nil || len(ids) == 0 {
		return found, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = CacheKey(userID, models.EntityRef{Type: et, ID: id})
	}
	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.CacheLookups.WithLabelValues(cacheName, "error").Add(float64(len(ids)))
		return found, errors.NewCacheUnavailableError(err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			metrics.CacheLookups.WithLabelValues(cacheName, "miss").Inc()
			continue
		}
		var s models.MatchScore
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			metrics.CacheLookups.WithLabelValues(cacheName, "miss").Inc()
			continue
		}
		metrics.CacheLookups.WithLabelValues(cacheName, "hit").Inc()
		found[ids[i]] = s
	}
	return found, nil
}

// put writes a freshly persisted score, replacing any cached copy.
func (c *readCache) put(ctx context.Context, userID string, score models.MatchScore) error {
	if c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(score)
	if err != nil {
		return err
	}
	key := CacheKey(userID, models.EntityRef{Type: score.EntityType, ID: score.EntityID})
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}

// fill caches scores read from the document store. Keys that already hold
// a value are left alone, so a score written by put after the documents
// were read is never replaced by the older copy.
func (c *readCache) fill(ctx context.Context, userID string, scores []models.MatchScore) error {
	if c.rdb == nil || len(scores) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, s := range scores {
		raw, err := json.Marshal(s)
		if err != nil {
			return err
		}
		pipe.SetNX(ctx, CacheKey(userID, models.EntityRef{Type: s.EntityType, ID: s.EntityID}), raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}

func (c *readCache) evict(ctx context.Context, keys ...string) error {
	if c.rdb == nil || len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}
