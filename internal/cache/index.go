package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// InMemoryCache is a small TTL cache over ristretto.
type InMemoryCache struct {
	cache *ristretto.Cache
}

var (
	imageCache     *InMemoryCache
	imageCacheOnce sync.Once
)

func InMemoryInitialize(config *ristretto.Config) (*InMemoryCache, error) {
	if config == nil {
		config = &ristretto.Config{
			NumCounters: 10000,    // number of keys to track frequency
			MaxCost:     16777216, // maximum cost of cache (16mb).
			BufferItems: 64,       // number of keys per Get buffer.
		}
	}
	cache, err := ristretto.NewCache(config)
	if err != nil {
		slog.Error("error initializing in-memory cache", "error", err)
		return nil, err
	}

	return &InMemoryCache{cache}, nil
}

// GetImageCache returns the process wide cache of image references known to
// be present on the docker host. It is nil when the cache could not be
// created; callers then go to the docker host every time.
func GetImageCache() *InMemoryCache {
	imageCacheOnce.Do(func() {
		c, err := InMemoryInitialize(nil)
		if err != nil {
			slog.Warn("image cache disabled", "error", err)
			return
		}
		imageCache = c
	})
	return imageCache
}

func (cache *InMemoryCache) SetWithTTL(key string, value interface{}, ttl time.Duration) bool {
	res := cache.cache.SetWithTTL(key, value, 1, ttl)

	// wait for value to pass through buffers
	cache.cache.Wait()
	return res
}

func (cache *InMemoryCache) Get(key string) (interface{}, bool) {
	return cache.cache.Get(key)
}

func (cache *InMemoryCache) Delete(key string) {
	cache.cache.Del(key)
}
