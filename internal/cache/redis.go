package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/pasteshield/internal/phishing"
	"go.uber.org/zap"
)

// VerdictCache handles Redis-based caching of phishing verdicts. Entries are
// keyed by detector version so a config change never serves stale verdicts.
type VerdictCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	stats  cacheStats
}

// cacheStats tracks cache performance metrics
type cacheStats struct {
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewVerdictCache creates a new Redis-based verdict cache
func NewVerdictCache(config *Config, logger *zap.Logger) (*VerdictCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	cache := &VerdictCache{
		client: redis.NewClient(opts),
		config: config,
		logger: logger,
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.ping(ctx); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Verdict cache initialized successfully",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

// ping tests the Redis connection
func (vc *VerdictCache) ping(ctx context.Context) error {
	_, err := vc.client.Ping(ctx).Result()
	return err
}

// Get returns the cached verdict for url under the given detector version.
// Lookup failures are logged and reported as a miss.
func (vc *VerdictCache) Get(ctx context.Context, version, url string) (*phishing.Result, bool) {
	key := vc.verdictKey(version, url)

	data, err := vc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		vc.stats.misses.Add(1)
		vc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	} else if err != nil {
		vc.stats.errors.Add(1)
		vc.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var cached CachedVerdict
	if err := json.Unmarshal(data, &cached); err != nil || cached.Version != version {
		vc.stats.misses.Add(1)
		vc.logger.Warn("Discarding unreadable cache entry", zap.String("key", key))
		vc.client.Del(ctx, key)
		return nil, false
	}

	vc.stats.hits.Add(1)
	vc.logger.Debug("Cache hit", zap.String("key", key), zap.Bool("is_phishing", cached.Result.IsPhishing))

	return &cached.Result, true
}

// Put caches a verdict. Results carrying an analysis error are not cached.
func (vc *VerdictCache) Put(ctx context.Context, version string, result phishing.Result) error {
	if result.Error != "" {
		return nil
	}

	key := vc.verdictKey(version, result.URL)
	data, err := json.Marshal(CachedVerdict{
		Result:   result,
		Version:  version,
		CachedAt: time.Now(),
		TTL:      int64(vc.config.DefaultTTL.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal verdict for caching: %w", err)
	}

	if err := vc.client.Set(ctx, key, data, vc.config.DefaultTTL).Err(); err != nil {
		vc.stats.errors.Add(1)
		vc.logger.Error("Failed to cache verdict", zap.Error(err))
		return fmt.Errorf("failed to cache verdict: %w", err)
	}

	return nil
}

// GetStats returns cache performance statistics
func (vc *VerdictCache) GetStats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{
		Hits:   vc.stats.hits.Load(),
		Misses: vc.stats.misses.Load(),
		Errors: vc.stats.errors.Load(),
	}

	// Calculate hit rate
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	keys, err := vc.client.DBSize(ctx).Result()
	if err != nil {
		return stats, fmt.Errorf("failed to get Redis key count: %w", err)
	}
	stats.TotalKeys = keys

	return stats, nil
}

// Clear removes all cached verdicts
func (vc *VerdictCache) Clear(ctx context.Context) error {
	pattern := vc.config.KeyPrefix + ":verdict:*"

	// Use SCAN to find all keys with our prefix
	iter := vc.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	// Delete keys in batches
	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		if err := vc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			vc.logger.Error("Failed to delete cache keys", zap.Error(err))
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	vc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (vc *VerdictCache) Close() error {
	if vc.client != nil {
		return vc.client.Close()
	}
	return nil
}

// verdictKey creates a cache key from the detector version and URL
func (vc *VerdictCache) verdictKey(version, url string) string {
	hasher := sha256.New()
	hasher.Write([]byte(version))
	hasher.Write([]byte{'|'})
	hasher.Write([]byte(url))

	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:verdict:%s", vc.config.KeyPrefix, hash[:16])
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}

	userPart := url[:at]
	scheme := strings.Index(userPart, "://")
	colon := strings.LastIndex(userPart, ":")
	if colon <= scheme+2 {
		return url
	}

	return userPart[:colon+1] + "***" + url[at:]
}
