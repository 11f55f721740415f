package courses

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// courseListKey is the single well known key holding the cached listing
const courseListKey = "courses_data"

const DefaultListTTL = 900 * time.Second

var _ KeyValueCache = (*RedisCache)(nil)

// KeyValueCache is the narrow slice of a key-value store with TTL that
// the course listing needs. Get returns "" for an absent key.
type KeyValueCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type RedisCache struct {
	redisClient *redis.Client
}

func NewRedisCache(redisClient *redis.Client) *RedisCache {
	return &RedisCache{
		redisClient: redisClient,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	cmd := c.redisClient.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return cmd.Val(), nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.redisClient.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.redisClient.Del(ctx, key).Err()
}

// ListCache is a read-through cache over the course repo. Writers must
// call Invalidate after every committed create or delete, which
// collapses the cache back to a miss before stale data can be served.
type ListCache struct {
	cache KeyValueCache
	repo  Repo
	ttl   time.Duration
}

func NewListCache(cache KeyValueCache, repo Repo, ttl time.Duration) *ListCache {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return &ListCache{
		cache: cache,
		repo:  repo,
		ttl:   ttl,
	}
}

// List returns the cached course snapshot when one is present, and
// otherwise fetches from the repo and populates the cache. The second
// return value tells whether the result came from the cache.
func (lc *ListCache) List(ctx context.Context) ([]Course, bool, error) {
	cached, err := lc.cache.Get(ctx, courseListKey)
	if err != nil {
		// a broken cache shouldn't take down the listing
		log.Errorf("course list cache get: %s", err)
	}

	if cached != "" {
		var courses []Course
		if err := json.Unmarshal([]byte(cached), &courses); err != nil {
			// fall through to the repo
			log.Errorf("unmarshal cached course list: %s", err)
		} else {
			return courses, true, nil
		}
	}

	courses, err := lc.repo.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list courses: %w", err)
	}

	// an empty catalog is never cached, the next listing re-fetches
	if len(courses) > 0 {
		coursesJson, err := json.Marshal(courses)
		if err != nil {
			log.Errorf("marshal course list for cache: %s", err)
		} else if err := lc.cache.Set(ctx, courseListKey, string(coursesJson), lc.ttl); err != nil {
			log.Errorf("course list cache set: %s", err)
		}
	}

	return courses, false, nil
}

// Invalidate drops the cached listing. Call it only after the store
// mutation has committed, never before.
func (lc *ListCache) Invalidate(ctx context.Context) error {
	return lc.cache.Del(ctx, courseListKey)
}
