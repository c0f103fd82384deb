package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yield-ledger/internal/logging"
)

// CacheService caches per-holder claimable totals in Redis. The engine is
// the source of truth; cached values are invalidated on every mutation
// that touches a holder's claims.
type CacheService struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(cache *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		cache: cache,
		ttl:   ttl,
	}
}

func claimableKey(holder string) string {
	return fmt.Sprintf("claimable:%s", strings.ToLower(holder))
}

// GetClaimable returns the cached claimable total for a holder. The second
// return value reports whether the cache had an entry.
func (s *CacheService) GetClaimable(ctx context.Context, holder string) (uint64, bool) {
	value, err := s.cache.Get(ctx, claimableKey(holder))
	if err != nil {
		if err != redis.Nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to read claimable cache")
		}
		return 0, false
	}

	amount, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Corrupt claimable cache entry")
		return 0, false
	}
	return amount, true
}

// SetClaimable caches the claimable total for a holder
func (s *CacheService) SetClaimable(ctx context.Context, holder string, amount uint64) {
	key := claimableKey(holder)
	if err := s.cache.Set(ctx, key, strconv.FormatUint(amount, 10), s.ttl); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to write claimable cache")
	}
}

// InvalidateHolder drops the cached claimable total for one holder
func (s *CacheService) InvalidateHolder(ctx context.Context, holder string) {
	if err := s.cache.Del(ctx, claimableKey(holder)); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate claimable cache")
	}
}

// InvalidateAll drops every cached claimable total. Called when a new
// distribution changes claimable amounts for the whole holder set.
func (s *CacheService) InvalidateAll(ctx context.Context) {
	keys, err := s.cache.Keys(ctx, "claimable:*")
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to scan claimable cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to flush claimable cache")
	}
}
