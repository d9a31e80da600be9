package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
)

var norm = normalizer.New(normalizer.Options{Language: "english"})

type source struct {
	x *index.Index
}

func (s source) Index() (*index.Index, error) {
	if s.x == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	return s.x, nil
}

type countingExecutor struct {
	inner *executor.Executor
	calls atomic.Int32
}

func (c *countingExecutor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error) {
	c.calls.Add(1)
	return c.inner.Execute(ctx, plan, limit)
}

type fixedStats struct{}

func (fixedStats) Stats() indexer.Stats {
	return indexer.Stats{Documents: 3, Terms: 12}
}

func buildIndex() *index.Index {
	b := index.NewBuilder()
	b.Add(0, index.DocMeta{URL: "https://a/", Title: "Castle"}, norm.Terms("Hohentübingen castle above the old town"))
	b.Add(1, index.DocMeta{URL: "https://b/"}, norm.Terms("Museum of the old castle"))
	b.Add(2, index.DocMeta{URL: "https://c/"}, norm.Terms("Punting on the Neckar"))
	return b.Build()
}

func newTestHandler(t *testing.T, x *index.Index, withCache bool) (*Handler, *countingExecutor) {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	exec := &countingExecutor{inner: executor.New(source{x}, ranker.New(ranker.DefaultParams()), executor.Options{Metrics: m})}
	opts := Options{Stats: fixedStats{}, Metrics: m, DefaultLimit: 10, MaxResults: 20}
	if withCache {
		c, err := cache.New(cache.Options{LocalTTL: time.Minute, LocalMaxMiB: 8})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { c.Close() })
		opts.Cache = c
	}
	return New(exec, parser.New(norm), opts), exec
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Routes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) executor.SearchResult {
	t.Helper()
	var res executor.SearchResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return res
}

func TestSearch(t *testing.T) {
	h, _ := newTestHandler(t, buildIndex(), false)

	rec := serve(h, http.MethodGet, "/api/v1/search?q=old+castle")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	res := decode(t, rec)
	if res.TotalHits != 2 || res.Mode != "and" {
		t.Fatalf("result = %+v", res)
	}
	if res.Results[0].DocID != 1 {
		t.Errorf("top hit = %d, want the exact phrase match 1", res.Results[0].DocID)
	}

	rec = serve(h, http.MethodGet, "/api/v1/search?q=castle+neckar&mode=or&limit=1")
	res = decode(t, rec)
	if res.TotalHits != 3 || len(res.Results) != 1 || res.Mode != "or" {
		t.Errorf("or result = %+v", res)
	}
}

func TestSearchBadRequests(t *testing.T) {
	h, _ := newTestHandler(t, buildIndex(), false)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=castle&limit=0",
		"/api/v1/search?q=castle&limit=abc",
		"/api/v1/search?q=castle&mode=xor",
	} {
		if rec := serve(h, http.MethodGet, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestSearchOnlyStopwords(t *testing.T) {
	h, exec := newTestHandler(t, buildIndex(), false)
	rec := serve(h, http.MethodGet, "/api/v1/search?q=the+of")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if res := decode(t, rec); len(res.Results) != 0 {
		t.Errorf("results = %+v", res.Results)
	}
	if exec.calls.Load() != 0 {
		t.Error("empty plan should not reach the executor")
	}
}

func TestSearchIndexNotReady(t *testing.T) {
	h, _ := newTestHandler(t, nil, false)
	if rec := serve(h, http.MethodGet, "/api/v1/search?q=castle"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestSearchUsesCache(t *testing.T) {
	h, exec := newTestHandler(t, buildIndex(), true)
	for range 3 {
		if rec := serve(h, http.MethodGet, "/api/v1/search?q=castle"); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if exec.calls.Load() != 1 {
		t.Errorf("executor calls = %d, want 1", exec.calls.Load())
	}

	rec := serve(h, http.MethodGet, "/api/v1/cache/stats")
	var stats map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats["hits"] != float64(2) || stats["misses"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}

	if rec := serve(h, http.MethodPost, "/api/v1/cache/invalidate"); rec.Code != http.StatusOK {
		t.Errorf("invalidate status = %d", rec.Code)
	}
	serve(h, http.MethodGet, "/api/v1/search?q=castle")
	if exec.calls.Load() != 2 {
		t.Errorf("executor calls after invalidate = %d, want 2", exec.calls.Load())
	}
}

func TestCacheDisabled(t *testing.T) {
	h, _ := newTestHandler(t, buildIndex(), false)
	if rec := serve(h, http.MethodPost, "/api/v1/cache/invalidate"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIndexStats(t *testing.T) {
	h, _ := newTestHandler(t, buildIndex(), false)
	rec := serve(h, http.MethodGet, "/api/v1/index/stats")
	var s indexer.Stats
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.Documents != 3 || s.Terms != 12 {
		t.Errorf("stats = %+v", s)
	}
}
