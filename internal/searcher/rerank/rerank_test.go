package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/resilience"
)

type staticScorer map[int]float64

func (s staticScorer) Score(context.Context, string, []int) (map[int]float64, error) {
	return s, nil
}

func docs(ids ...int) []ranker.ScoredDoc {
	out := make([]ranker.ScoredDoc, len(ids))
	for i, id := range ids {
		out[i] = ranker.ScoredDoc{DocID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func ids(ds []ranker.ScoredDoc) []int {
	out := make([]int, len(ds))
	for i, d := range ds {
		out[i] = d.DocID
	}
	return out
}

func TestHybridRerank(t *testing.T) {
	// lambda 0.5, K 3: doc 7 -> 1.5+0, doc 8 -> 1.0+0.5*1.0, doc 9 -> 0.5+0.5*0.9
	h := NewHybrid(staticScorer{7: 0, 8: 1.0, 9: 0.9}, 0.5, 3)
	got, err := h.Rerank(context.Background(), "q", docs(7, 8, 9, 10))
	if err != nil {
		t.Fatal(err)
	}
	want := []int{7, 8, 9, 10}
	for i := range want {
		if got[i].DocID != want[i] {
			t.Fatalf("order = %v, want %v", ids(got), want)
		}
	}

	h = NewHybrid(staticScorer{7: 0, 8: 1.0, 9: 0.9}, 0, 3)
	got, _ = h.Rerank(context.Background(), "q", docs(7, 8, 9, 10))
	if g := ids(got); g[0] != 8 || g[1] != 9 || g[2] != 7 || g[3] != 10 {
		t.Errorf("similarity-only order = %v", g)
	}
}

func TestHTTPScorer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query != "castle" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		scores := make(map[int]float64)
		for _, id := range req.DocIDs {
			scores[id] = float64(id) / 10
		}
		json.NewEncoder(w).Encode(scoreResponse{Scores: scores})
	}))
	defer ts.Close()

	s := NewHTTPScorer(config.RerankConfig{Endpoint: ts.URL, Timeout: time.Second}, ts.Client(), resilience.CircuitBreakerConfig{})
	got, err := s.Score(context.Background(), "castle", []int{1, 5})
	if err != nil {
		t.Fatal(err)
	}
	if got[1] != 0.1 || got[5] != 0.5 {
		t.Errorf("scores = %v", got)
	}
}

func TestHTTPScorerTripsBreaker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	s := NewHTTPScorer(config.RerankConfig{Endpoint: ts.URL, Timeout: time.Second}, ts.Client(),
		resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	for i := 0; i < 2; i++ {
		if _, err := s.Score(context.Background(), "q", []int{1}); err == nil {
			t.Fatal("expected failure")
		}
	}
	if _, err := s.Score(context.Background(), "q", []int{1}); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("err = %v, want open circuit", err)
	}
}
