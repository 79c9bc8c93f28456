package utils

import (
	"MediaVault/internal/repo"
	"MediaVault/model"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheDisabled = errors.New("cache disabled")
	ErrCacheMiss     = errors.New("cache miss")
)

type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis cache client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
	}
}

// Get reads a cached value. A missing key yields ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

// Set writes a cached value.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, string(data), expiration).Err()
}

// Delete removes a cache entry.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Incr bumps an integer counter and returns the new value.
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// noopCache is used when Redis is not configured.
type noopCache struct{}

func (noopCache) Get(context.Context, string, interface{}) error { return ErrCacheDisabled }
func (noopCache) Set(context.Context, string, interface{}, time.Duration) error {
	return nil
}
func (noopCache) Delete(context.Context, string) error        { return nil }
func (noopCache) Incr(context.Context, string) (int64, error) { return 0, nil }

type CacheManager struct {
	cache Cache
}

var globalCacheManager *CacheManager
var cacheManagerMu sync.Mutex

// InitCacheManager initializes the cache manager from repo.Redis.
func InitCacheManager() {
	cacheManagerMu.Lock()
	defer cacheManagerMu.Unlock()
	if repo.Redis == nil {
		globalCacheManager = &CacheManager{cache: noopCache{}}
		return
	}
	globalCacheManager = &CacheManager{cache: NewRedisCache(repo.Redis)}
}

// SetCache replaces the backing cache.
func SetCache(cache Cache) {
	cacheManagerMu.Lock()
	defer cacheManagerMu.Unlock()
	globalCacheManager = &CacheManager{cache: cache}
}

// GetCacheManager returns the cache manager.
func GetCacheManager() *CacheManager {
	cacheManagerMu.Lock()
	m := globalCacheManager
	cacheManagerMu.Unlock()
	if m == nil {
		InitCacheManager()
		cacheManagerMu.Lock()
		m = globalCacheManager
		cacheManagerMu.Unlock()
	}
	return m
}

// BuildCacheKey builds a cache key.
func BuildCacheKey(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key += fmt.Sprintf(":%v", param)
	}
	return key
}

const (
	CacheKeyAssetList    = "asset:list"
	CacheKeyAssetListGen = "asset:list:gen"
)

type AssetListCache struct {
	Assets []model.Asset `json:"assets"`
	Total  int64         `json:"total"`
}

// assetListKey hashes the query so any filter combination gets its own entry.
// The generation in the key retires every page of the owner at once.
func assetListKey(userID uint64, gen int64, query interface{}) string {
	raw, _ := json.Marshal(query)
	sum := sha1.Sum(raw)
	return BuildCacheKey(CacheKeyAssetList, userID, gen, hex.EncodeToString(sum[:]))
}

func assetListGenerationKey(userID uint64) string {
	return BuildCacheKey(CacheKeyAssetListGen, userID)
}

// AssetListGeneration returns the owner's current list generation. Read it before
// querying and pass it to SetAssetListToCache, so a page computed before a mutation
// is stored under a retired key. ok is false when caching is unavailable.
func AssetListGeneration(ctx context.Context, userID uint64) (int64, bool) {
	var gen int64
	err := GetCacheManager().cache.Get(ctx, assetListGenerationKey(userID), &gen)
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, ErrCacheMiss):
		return 0, true
	default:
		return 0, false
	}
}

// GetAssetListFromCache reads a cached asset page.
func GetAssetListFromCache(ctx context.Context, userID uint64, gen int64, query interface{}) (*AssetListCache, bool) {
	manager := GetCacheManager()
	var result AssetListCache
	if err := manager.cache.Get(ctx, assetListKey(userID, gen, query), &result); err != nil {
		return nil, false
	}
	return &result, true
}

// SetAssetListToCache writes a cached asset page under the generation read before the query.
func SetAssetListToCache(ctx context.Context, userID uint64, gen int64, query interface{}, data *AssetListCache, expiration time.Duration) error {
	manager := GetCacheManager()
	return manager.cache.Set(ctx, assetListKey(userID, gen, query), data, expiration)
}

// InvalidateAssetListCache retires every cached page for the user.
func InvalidateAssetListCache(ctx context.Context, userID uint64) error {
	_, err := GetCacheManager().cache.Incr(ctx, assetListGenerationKey(userID))
	return err
}
