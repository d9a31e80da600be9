package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/redis"
)

var p = parser.New(normalizer.New(normalizer.Options{Language: "english"}))

func TestKey(t *testing.T) {
	if Key(p.Parse("Castles museum"), 10) != Key(p.Parse("castle museums"), 10) {
		t.Error("inflection and case should not change the key")
	}
	if Key(p.Parse("old town"), 10) == Key(p.Parse("town old"), 10) {
		t.Error("term order changes ranking and must change the key")
	}
	if Key(p.Parse("castle"), 10) == Key(p.Parse("castle"), 20) {
		t.Error("limit must be part of the key")
	}
	if Key(p.Parse("castle OR museum"), 10) == Key(p.Parse("castle museum"), 10) {
		t.Error("mode must be part of the key")
	}
}

func TestLocalTier(t *testing.T) {
	c, err := New(Options{LocalTTL: time.Minute, LocalMaxMiB: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		return &executor.SearchResult{Query: "castle", TotalHits: 3}, nil
	}
	plan := p.Parse("castle")
	ctx := context.Background()

	first, hit, err := c.GetOrCompute(ctx, plan, 10, compute)
	if err != nil || hit || first.TotalHits != 3 {
		t.Fatalf("first = %+v, hit = %v, err = %v", first, hit, err)
	}
	second, hit, err := c.GetOrCompute(ctx, plan, 10, compute)
	if err != nil || !hit || second.TotalHits != 3 {
		t.Fatalf("second = %+v, hit = %v, err = %v", second, hit, err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute ran %d times", calls.Load())
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.GetOrCompute(ctx, plan, 10, compute); hit {
		t.Error("invalidated entry should miss")
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("hits = %d, misses = %d", hits, misses)
	}
}

func TestHitKeepsCallerQuery(t *testing.T) {
	c, err := New(Options{LocalTTL: time.Minute, LocalMaxMiB: 8})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	first := p.Parse("old town")
	if _, _, err := c.GetOrCompute(ctx, first, 10, func() (*executor.SearchResult, error) {
		return &executor.SearchResult{Query: first.RawQuery, TotalHits: 2}, nil
	}); err != nil {
		t.Fatal(err)
	}

	second := p.Parse("Old Town")
	got, hit, err := c.GetOrCompute(ctx, second, 10, func() (*executor.SearchResult, error) {
		t.Error("equivalent query should be served from cache")
		return nil, nil
	})
	if err != nil || !hit {
		t.Fatalf("hit = %v, err = %v", hit, err)
	}
	if got.Query != "Old Town" || got.TotalHits != 2 {
		t.Errorf("result = %+v, want query %q", got, "Old Town")
	}
}

func TestSingleflightAndErrors(t *testing.T) {
	c, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	release := make(chan struct{})
	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return &executor.SearchResult{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCompute(context.Background(), p.Parse("neckar"), 10, compute)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if calls.Load() != 1 {
		t.Errorf("concurrent misses computed %d times", calls.Load())
	}

	boom := errors.New("boom")
	if _, _, err := c.GetOrCompute(context.Background(), p.Parse("castle"), 10, func() (*executor.SearchResult, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestRedisTier(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx := context.Background()
	client, err := pkgredis.NewClient(ctx, config.RedisConfig{Addr: addr, PoolSize: 2})
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	writer, err := New(Options{Remote: client, RemoteTTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	key := Key(p.Parse("tübingen castle"), 5)
	writer.Set(ctx, key, &executor.SearchResult{Query: "tübingen castle", TotalHits: 7})

	reader, err := New(Options{Remote: client, RemoteTTL: time.Minute, LocalTTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	got, ok := reader.Get(ctx, key)
	if !ok || got.TotalHits != 7 {
		t.Fatalf("redis get = %+v, %v", got, ok)
	}
	if err := reader.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := reader.Get(ctx, key); ok {
		t.Error("entry survived invalidation")
	}
}
