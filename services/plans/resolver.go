package plans

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stock_alerts_backend/models"
)

// Source is the external billing collaborator: the source of truth
// for a user's subscription plan.
type Source interface {
	Lookup(ctx context.Context, userID string) (models.Plan, error)
}

// Cache is the fast tier in front of the billing lookup.
type Cache interface {
	Get(ctx context.Context, userID string) (models.Plan, bool, error)
	Set(ctx context.Context, userID string, plan models.Plan, ttl time.Duration) error
}

// Resolver performs the two-tier cache-then-source plan lookup. Cache
// population after a miss is an explicit step rather than a
// fire-and-forget side effect, so it is observable in tests.
type Resolver struct {
	cache  Cache
	source Source
	ttl    time.Duration
	logger *zap.Logger
}

const defaultPlanTTL = 5 * time.Minute

// NewResolver creates a resolver over cache and source. A zero ttl
// uses the default.
func NewResolver(cache Cache, source Source, ttl time.Duration, logger *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = defaultPlanTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cache: cache, source: source, ttl: ttl, logger: logger}
}

// Resolve returns the user's plan, consulting the cache tier first and
// falling back to the billing source. Cache failures degrade to the
// source rather than failing the lookup.
func (r *Resolver) Resolve(ctx context.Context, userID string) (models.Plan, error) {
	plan, hit, err := r.cache.Get(ctx, userID)
	if err != nil {
		r.logger.Warn("plan cache read failed", zap.String("user_id", userID), zap.Error(err))
	} else if hit {
		return plan, nil
	}

	plan, err = r.source.Lookup(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("plan lookup for user %s failed: %w", userID, err)
	}
	if !plan.Valid() {
		return "", fmt.Errorf("billing source returned unknown plan %q for user %s", plan, userID)
	}

	if err := r.Populate(ctx, userID, plan); err != nil {
		r.logger.Warn("plan cache populate failed", zap.String("user_id", userID), zap.Error(err))
	}
	return plan, nil
}

// Populate writes a resolved plan into the cache tier.
func (r *Resolver) Populate(ctx context.Context, userID string, plan models.Plan) error {
	return r.cache.Set(ctx, userID, plan, r.ttl)
}

const planKeyPrefix = "plan:"

// RedisCache is the production cache tier.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, userID string) (models.Plan, bool, error) {
	val, err := c.client.Get(ctx, planKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	plan := models.Plan(val)
	if !plan.Valid() {
		return "", false, nil
	}
	return plan, true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, plan models.Plan, ttl time.Duration) error {
	return c.client.Set(ctx, planKeyPrefix+userID, string(plan), ttl).Err()
}

// MemoryCache is an in-process cache tier for tests and single-node
// deployments without Redis.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	plan      models.Plan
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, userID string) (models.Plan, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok || time.Now().After(e.expiresAt) {
		delete(c.entries, userID)
		return "", false, nil
	}
	return e.plan, true, nil
}

func (c *MemoryCache) Set(_ context.Context, userID string, plan models.Plan, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = memoryEntry{plan: plan, expiresAt: time.Now().Add(ttl)}
	return nil
}
