package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/symptom-dx-server/internal/domain"
)

const predictionKeyPrefix = "symptomdx:prediction:"

// PredictionCache keeps recent classifier results in two tiers: an
// in-process LRU and an optional shared Redis instance.
type PredictionCache struct {
	memory *lru.Cache[string, *domain.PredictionResult] // Tier 1
	redis  *redis.Client                                // Tier 2, nil when not configured
	ttl    time.Duration
	logger *logrus.Logger

	stats   CacheStats
	statsMu sync.RWMutex
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	MemoryHits    int64     `json:"memory_hits"`
	MemoryMisses  int64     `json:"memory_misses"`
	RedisHits     int64     `json:"redis_hits"`
	RedisMisses   int64     `json:"redis_misses"`
	TotalRequests int64     `json:"total_requests"`
	ErrorCount    int64     `json:"error_count"`
	LastReset     time.Time `json:"last_reset"`
}

// cachedPrediction is the Redis envelope.
type cachedPrediction struct {
	Data      *domain.PredictionResult `json:"data"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// NewPredictionCache creates a cache sized by cfg.MaxItems. A nil client
// leaves the cache memory-only.
func NewPredictionCache(cfg domain.CacheConfig, client *redis.Client, logger *logrus.Logger) (*PredictionCache, error) {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 1000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}

	memory, err := lru.New[string, *domain.PredictionResult](cfg.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &PredictionCache{
		memory: memory,
		redis:  client,
		ttl:    cfg.DefaultTTL,
		logger: logger,
		stats:  CacheStats{LastReset: time.Now()},
	}, nil
}

// NewRedisClient connects to cfg.RedisURL and verifies the connection.
func NewRedisClient(cfg domain.CacheConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.PoolTimeout > 0 {
		opts.PoolTimeout = cfg.PoolTimeout
	}
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// PredictionKey identifies a result by model bundle, vector bits and k.
func PredictionKey(bundleID string, vec domain.FeatureVector, k int) string {
	sum := sha256.Sum256([]byte(vec.Key()))
	return fmt.Sprintf("%s:%d:%s", bundleID, k, hex.EncodeToString(sum[:16]))
}

// Get looks a result up in memory, then Redis. Redis hits are promoted.
// Returned results are shared and must not be modified.
func (c *PredictionCache) Get(ctx context.Context, key string) (*domain.PredictionResult, bool) {
	c.incrementStat("total_requests")

	if result, ok := c.memory.Get(key); ok {
		c.incrementStat("memory_hits")
		return result, true
	}
	c.incrementStat("memory_misses")

	if c.redis == nil {
		return nil, false
	}

	result, err := c.getFromRedis(ctx, key)
	if err != nil {
		c.incrementStat("error_count")
		c.logger.WithFields(logrus.Fields{
			"cache_tier": "redis",
			"error":      err.Error(),
		}).Warn("Prediction cache lookup failed")
		return nil, false
	}
	if result == nil {
		c.incrementStat("redis_misses")
		return nil, false
	}

	c.incrementStat("redis_hits")
	c.memory.Add(key, result)
	return result, true
}

// Set stores result in both tiers. Redis failures are logged only.
func (c *PredictionCache) Set(ctx context.Context, key string, result *domain.PredictionResult) {
	c.memory.Add(key, result)

	if c.redis == nil {
		return
	}
	if err := c.setInRedis(ctx, key, result); err != nil {
		c.incrementStat("error_count")
		c.logger.WithFields(logrus.Fields{
			"cache_tier": "redis",
			"error":      err.Error(),
		}).Warn("Prediction cache store failed")
	}
}

func (c *PredictionCache) getFromRedis(ctx context.Context, key string) (*domain.PredictionResult, error) {
	redisKey := predictionKeyPrefix + key

	val, err := c.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction cache: %w", err)
	}

	var cached cachedPrediction
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, redisKey)
		return nil, nil
	}
	if time.Now().After(cached.ExpiresAt) || cached.Data == nil {
		c.redis.Del(ctx, redisKey)
		return nil, nil
	}
	return cached.Data, nil
}

func (c *PredictionCache) setInRedis(ctx context.Context, key string, result *domain.PredictionResult) error {
	now := time.Now()
	data, err := json.Marshal(cachedPrediction{
		Data:      result,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal prediction cache data: %w", err)
	}
	return c.redis.Set(ctx, predictionKeyPrefix+key, data, c.ttl).Err()
}

// Purge drops every in-memory entry.
func (c *PredictionCache) Purge() {
	c.memory.Purge()
}

// Len returns the number of in-memory entries.
func (c *PredictionCache) Len() int {
	return c.memory.Len()
}

// Stats returns a snapshot of the counters.
func (c *PredictionCache) Stats() CacheStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// Close releases the Redis client, if any.
func (c *PredictionCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func (c *PredictionCache) incrementStat(statName string) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	switch statName {
	case "memory_hits":
		c.stats.MemoryHits++
	case "memory_misses":
		c.stats.MemoryMisses++
	case "redis_hits":
		c.stats.RedisHits++
	case "redis_misses":
		c.stats.RedisMisses++
	case "total_requests":
		c.stats.TotalRequests++
	case "error_count":
		c.stats.ErrorCount++
	}
}
