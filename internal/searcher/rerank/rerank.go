// Package rerank applies an optional secondary sort that blends the BM25 rank
// with an external similarity score.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/resilience"
)

// Reranker reorders ranked documents. On error callers keep the input order.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []ranker.ScoredDoc) ([]ranker.ScoredDoc, error)
}

// Scorer returns a similarity in [0,1] per document for query.
type Scorer interface {
	Score(ctx context.Context, query string, docIDs []int) (map[int]float64, error)
}

// Hybrid reorders the top K documents by
// lambda*(K-rank) + (1-lambda)*similarity. Documents past K keep their BM25
// order after the reranked block.
type Hybrid struct {
	scorer Scorer
	lambda float64
	topK   int
}

func NewHybrid(scorer Scorer, lambda float64, topK int) *Hybrid {
	if topK <= 0 {
		topK = 50
	}
	return &Hybrid{scorer: scorer, lambda: lambda, topK: topK}
}

func (h *Hybrid) Rerank(ctx context.Context, query string, docs []ranker.ScoredDoc) ([]ranker.ScoredDoc, error) {
	if len(docs) == 0 {
		return docs, nil
	}
	k := min(h.topK, len(docs))
	head := docs[:k]
	ids := make([]int, k)
	for i, d := range head {
		ids[i] = d.DocID
	}
	sims, err := h.scorer.Score(ctx, query, ids)
	if err != nil {
		return nil, err
	}

	type blended struct {
		doc   ranker.ScoredDoc
		score float64
	}
	mixed := make([]blended, k)
	for i, d := range head {
		mixed[i] = blended{
			doc:   d,
			score: h.lambda*float64(h.topK-i) + (1-h.lambda)*sims[d.DocID],
		}
	}
	sort.SliceStable(mixed, func(i, j int) bool {
		return mixed[i].score > mixed[j].score
	})

	out := make([]ranker.ScoredDoc, 0, len(docs))
	for _, m := range mixed {
		out = append(out, m.doc)
	}
	return append(out, docs[k:]...), nil
}

// HTTPScorer calls an external similarity service. Requests are guarded by a
// circuit breaker and a per-call timeout.
type HTTPScorer struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	breaker  *resilience.CircuitBreaker
	logger   *slog.Logger
}

type scoreRequest struct {
	Query  string `json:"query"`
	DocIDs []int  `json:"doc_ids"`
}

type scoreResponse struct {
	Scores map[int]float64 `json:"scores"`
}

// NewHTTPScorer creates a scorer posting to cfg.Endpoint. A nil client uses
// http.DefaultClient.
func NewHTTPScorer(cfg config.RerankConfig, client *http.Client, breaker resilience.CircuitBreakerConfig) *HTTPScorer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPScorer{
		endpoint: cfg.Endpoint,
		client:   client,
		timeout:  cfg.Timeout,
		breaker:  resilience.NewCircuitBreaker("rerank", breaker),
		logger:   slog.Default().With("component", "rerank-scorer"),
	}
}

func (s *HTTPScorer) Score(ctx context.Context, query string, docIDs []int) (map[int]float64, error) {
	if err := s.breaker.Allow(); err != nil {
		return nil, err
	}
	scores, err := resilience.CallWithTimeout(ctx, s.timeout, "rerank", func(ctx context.Context) (map[int]float64, error) {
		return s.post(ctx, query, docIDs)
	})
	s.breaker.Record(err)
	if err != nil {
		s.logger.Warn("similarity service failed", "error", err)
		return nil, err
	}
	return scores, nil
}

func (s *HTTPScorer) post(ctx context.Context, query string, docIDs []int) (map[int]float64, error) {
	body, err := json.Marshal(scoreRequest{Query: query, DocIDs: docIDs})
	if err != nil {
		return nil, fmt.Errorf("encoding rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling similarity service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("similarity service returned %d", resp.StatusCode)
	}
	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding rerank response: %w", err)
	}
	return out.Scores, nil
}
