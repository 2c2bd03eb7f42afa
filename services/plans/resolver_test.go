package plans

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_alerts_backend/models"
)

type stubSource struct {
	mu    sync.Mutex
	plans map[string]models.Plan
	err   error
	calls int
}

func (s *stubSource) Lookup(_ context.Context, userID string) (models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.plans[userID], nil
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (models.Plan, bool, error) {
	return "", false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, models.Plan, time.Duration) error {
	return errors.New("cache down")
}

func TestResolveMissPopulatesCache(t *testing.T) {
	source := &stubSource{plans: map[string]models.Plan{"u1": models.PlanPro}}
	cache := NewMemoryCache()
	r := NewResolver(cache, source, time.Minute, nil)

	plan, err := r.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, plan)
	assert.Equal(t, 1, source.calls)

	cached, hit, err := cache.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, hit, "a miss must populate the cache tier")
	assert.Equal(t, models.PlanPro, cached)
}

func TestResolveHitSkipsSource(t *testing.T) {
	source := &stubSource{plans: map[string]models.Plan{"u1": models.PlanPro}}
	cache := NewMemoryCache()
	r := NewResolver(cache, source, time.Minute, nil)

	_, err := r.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls, "the second lookup must come from the cache")
}

func TestResolveCacheFailureDegradesToSource(t *testing.T) {
	source := &stubSource{plans: map[string]models.Plan{"u1": models.PlanEnterprise}}
	r := NewResolver(failingCache{}, source, time.Minute, nil)

	plan, err := r.Resolve(context.Background(), "u1")
	require.NoError(t, err, "a broken cache tier must not fail the lookup")
	assert.Equal(t, models.PlanEnterprise, plan)
}

func TestResolveSourceFailurePropagates(t *testing.T) {
	source := &stubSource{err: errors.New("billing down")}
	r := NewResolver(NewMemoryCache(), source, time.Minute, nil)

	_, err := r.Resolve(context.Background(), "u1")
	assert.Error(t, err)
}

func TestResolveRejectsUnknownPlan(t *testing.T) {
	source := &stubSource{plans: map[string]models.Plan{"u1": "platinum"}}
	r := NewResolver(NewMemoryCache(), source, time.Minute, nil)

	_, err := r.Resolve(context.Background(), "u1")
	assert.Error(t, err)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "u1", models.PlanPro, 10*time.Millisecond))

	_, hit, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, hit)

	time.Sleep(20 * time.Millisecond)
	_, hit, err = cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, hit, "entries expire after their ttl")
}
