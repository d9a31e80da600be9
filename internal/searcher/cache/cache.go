// Package cache memoises search results in a process-local bigcache tier in
// front of a shared Redis tier. Concurrent identical misses are collapsed
// with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/redis"
)

const keyPrefix = "search:"

const (
	tierLocal = "local"
	tierRedis = "redis"
)

// Options configures both tiers. A zero LocalTTL disables the local tier and
// a nil Remote disables Redis.
type Options struct {
	Remote      *pkgredis.Client
	RemoteTTL   time.Duration
	LocalTTL    time.Duration
	LocalMaxMiB int
	Metrics     *metrics.Metrics
}

type QueryCache struct {
	local     *bigcache.BigCache
	remote    *pkgredis.Client
	remoteTTL time.Duration
	group     singleflight.Group
	metrics   *metrics.Metrics
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

func New(opts Options) (*QueryCache, error) {
	c := &QueryCache{
		remote:    opts.Remote,
		remoteTTL: opts.RemoteTTL,
		metrics:   opts.Metrics,
		logger:    slog.Default().With("component", "query-cache"),
	}
	if opts.LocalTTL > 0 {
		cfg := bigcache.DefaultConfig(opts.LocalTTL)
		cfg.Shards = 64
		cfg.MaxEntriesInWindow = 10000
		cfg.CleanWindow = opts.LocalTTL
		cfg.HardMaxCacheSize = opts.LocalMaxMiB
		cfg.Verbose = false
		local, err := bigcache.New(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("creating local cache: %w", err)
		}
		c.local = local
	}
	return c, nil
}

// Get looks the key up in the local tier, then in Redis. A Redis hit is
// copied into the local tier.
func (c *QueryCache) Get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	if c.local != nil {
		if data, err := c.local.Get(key); err == nil {
			if result, ok := c.decode(key, data); ok {
				c.hit(tierLocal)
				return result, true
			}
		} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
			c.logger.Warn("local cache get failed", "key", key, "error", err)
		}
	}
	if c.remote != nil {
		data, err := c.remote.GetBytes(ctx, key)
		switch {
		case err == nil:
			if result, ok := c.decode(key, data); ok {
				c.hit(tierRedis)
				c.setLocal(key, data)
				return result, true
			}
		case !pkgredis.IsNilError(err):
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
	return nil, false
}

func (c *QueryCache) Set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	c.setLocal(key, data)
	if c.remote != nil {
		if err := c.remote.Set(ctx, key, data, c.remoteTTL); err != nil {
			c.logger.Error("cache set failed", "key", key, "error", err)
		}
	}
}

// GetOrCompute returns the cached result for plan and limit or computes and
// stores it. The boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	plan *parser.QueryPlan,
	limit int,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	key := Key(plan, limit)
	if result, ok := c.Get(ctx, key); ok {
		return withQuery(result, plan.RawQuery), true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return withQuery(val.(*executor.SearchResult), plan.RawQuery), false, nil
}

// withQuery labels a shared result with the caller's own query text, since
// one entry serves every query that normalizes to the same key.
func withQuery(result *executor.SearchResult, query string) *executor.SearchResult {
	out := *result
	out.Query = query
	return &out
}

// Invalidate drops every cached result, e.g. after the index is reloaded.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if c.local != nil {
		if err := c.local.Reset(); err != nil {
			return fmt.Errorf("resetting local cache: %w", err)
		}
	}
	if c.remote == nil {
		return nil
	}
	deleted, err := c.remote.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) Close() error {
	if c.local == nil {
		return nil
	}
	return c.local.Close()
}

func (c *QueryCache) hit(tier string) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *QueryCache) setLocal(key string, data []byte) {
	if c.local == nil {
		return
	}
	if err := c.local.Set(key, data); err != nil {
		c.logger.Warn("local cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) decode(key string, data []byte) (*executor.SearchResult, bool) {
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

// Key derives the cache key from the normalized plan, so queries differing
// only in case or inflection share an entry. Term order is kept because it
// affects the phrase bonus.
func Key(plan *parser.QueryPlan, limit int) string {
	raw := fmt.Sprintf("%s:limit=%d", normalizeQuery(plan), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func normalizeQuery(plan *parser.QueryPlan) string {
	excludes := append([]string(nil), plan.ExcludeTerms...)
	sort.Strings(excludes)
	parts := []string{strings.ToUpper(plan.Mode.String()), strings.Join(plan.Terms, ",")}
	if len(excludes) > 0 {
		parts = append(parts, "NOT:"+strings.Join(excludes, ","))
	}
	return strings.Join(parts, "|")
}
