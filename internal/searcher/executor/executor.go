// Package executor runs a parsed query against the current index: candidate
// generation, BM25 ranking, and the optional secondary sort.
package executor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/expander"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/rerank"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/tracing"
)

// IndexSource supplies the index to query. indexer.Engine implements it.
type IndexSource interface {
	Index() (*index.Index, error)
}

// Hit is one ranked document with its display metadata.
type Hit struct {
	DocID       int     `json:"doc_id"`
	URL         string  `json:"url"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score"`
	BM25        float64 `json:"bm25"`
	Proximity   float64 `json:"proximity"`
}

type SearchResult struct {
	Query     string                `json:"query"`
	Mode      string                `json:"mode"`
	Terms     []ranker.WeightedTerm `json:"terms"`
	TotalHits int                   `json:"total_hits"`
	Results   []Hit                 `json:"results"`
	Reranked  bool                  `json:"reranked"`
	TermStats map[string]int        `json:"term_stats"`
}

// Options wires the optional collaborators. Nil fields disable them.
type Options struct {
	Expander    expander.Expander
	Reranker    rerank.Reranker
	RerankDepth int
	Metrics     *metrics.Metrics
}

type Executor struct {
	source      IndexSource
	ranker      *ranker.Ranker
	expander    expander.Expander
	reranker    rerank.Reranker
	rerankDepth int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(source IndexSource, rnk *ranker.Ranker, opts Options) *Executor {
	if opts.Expander == nil {
		opts.Expander = expander.Identity{}
	}
	return &Executor{
		source:      source,
		ranker:      rnk,
		expander:    opts.Expander,
		reranker:    opts.Reranker,
		rerankDepth: opts.RerankDepth,
		metrics:     opts.Metrics,
		logger:      slog.Default().With("component", "query-executor"),
	}
}

// Query ranks candidates against weighted terms in descending score order.
// Equal scores keep candidate order.
func (e *Executor) Query(ctx context.Context, terms []ranker.WeightedTerm, candidates []int) ([]ranker.ScoredDoc, error) {
	x, err := e.source.Index()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.ranker.Rank(x, terms, candidates), nil
}

// Execute runs plan end to end and returns at most limit hits.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	log := logger.FromContext(ctx)
	result := &SearchResult{
		Query:     plan.RawQuery,
		Mode:      plan.Mode.String(),
		Terms:     []ranker.WeightedTerm{},
		Results:   []Hit{},
		TermStats: map[string]int{},
	}
	if len(plan.Terms) == 0 {
		return result, nil
	}
	x, err := e.source.Index()
	if err != nil {
		return nil, err
	}

	_, span := tracing.Start(ctx, "expand", "")
	terms, err := e.expander.Expand(ctx, ranker.Uniform(plan.Terms))
	if err != nil {
		log.Warn("query expansion failed, using original terms", "error", err)
		terms = ranker.Uniform(plan.Terms)
	}
	span.Set("terms", len(terms))
	span.End()
	result.Terms = terms
	for _, t := range terms {
		result.TermStats[t.Term] = len(x.Postings(t.Term))
	}

	_, span = tracing.Start(ctx, "candidates", "")
	candidates := Candidates(x, plan, terms)
	result.TotalHits = len(candidates)
	span.Set("candidates", len(candidates))
	span.End()

	_, span = tracing.Start(ctx, "rank", "")
	ranked, err := e.Query(ctx, terms, candidates)
	span.End()
	if err != nil {
		return nil, err
	}

	depth := limit
	if e.reranker != nil && e.rerankDepth > depth {
		depth = e.rerankDepth
	}
	top := merger.TopK(ranked, depth)
	if e.reranker != nil && len(top) > 0 {
		rctx, span := tracing.Start(ctx, "rerank", "")
		reordered, err := e.reranker.Rerank(rctx, strings.Join(ranker.Distinct(terms), " "), top)
		span.Set("ok", err == nil)
		span.End()
		if err != nil {
			log.Warn("rerank failed, keeping bm25 order", "error", err)
			if e.metrics != nil {
				e.metrics.RerankFallbacksTotal.Inc()
			}
		} else {
			top = reordered
			result.Reranked = true
		}
	}
	if len(top) > limit {
		top = top[:limit]
	}

	for _, d := range top {
		meta, _ := x.Meta(d.DocID)
		result.Results = append(result.Results, Hit{
			DocID:       d.DocID,
			URL:         meta.URL,
			Title:       meta.Title,
			Description: meta.Description,
			Score:       d.Score,
			BM25:        d.BM25,
			Proximity:   d.Proximity,
		})
	}
	if e.metrics != nil {
		e.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
	}
	log.Debug("query executed",
		"query", plan.RawQuery,
		"terms", len(terms),
		"candidates", len(candidates),
		"results", len(result.Results),
		"reranked", result.Reranked,
	)
	return result, nil
}

// Candidates generates the documents to rank. Conjunctive mode intersects the
// postings of the original terms with skip pointers; disjunctive mode unions
// the postings of all expanded terms. Excluded terms are removed afterwards.
func Candidates(x *index.Index, plan *parser.QueryPlan, terms []ranker.WeightedTerm) []int {
	var ids []int
	switch plan.Mode {
	case parser.ModeOr:
		lists := make([]index.SkipList, 0, len(terms))
		for _, t := range terms {
			lists = append(lists, x.Postings(t.Term))
		}
		ids = index.Union(lists...)
	default:
		lists := make([]index.SkipList, 0, len(plan.Terms))
		for _, t := range plan.Terms {
			lists = append(lists, x.Postings(t))
		}
		ids = index.IntersectAll(lists...)
	}
	if len(plan.ExcludeTerms) == 0 || len(ids) == 0 {
		return ids
	}

	excluded := make([]index.SkipList, 0, len(plan.ExcludeTerms))
	for _, t := range plan.ExcludeTerms {
		excluded = append(excluded, x.Postings(t))
	}
	drop := make(map[int]bool)
	for _, id := range index.Union(excluded...) {
		drop[id] = true
	}
	kept := ids[:0]
	for _, id := range ids {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
