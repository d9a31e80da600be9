package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/expander"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
)

type staticSource struct{ x *index.Index }

func (s staticSource) Index() (*index.Index, error) {
	if s.x == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	return s.x, nil
}

func BenchmarkQueryParse(b *testing.B) {
	p := parser.New(norm)
	queries := []struct {
		name  string
		query string
	}{
		{"simple", "tübingen castle"},
		{"boolean_or", "museum OR garden OR church"},
		{"with_not", "university NOT hospital"},
		{"long", "food and drinks in the old town near the river with a view of the castle"},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				p.Parse(q.query)
			}
		})
	}
}

func BenchmarkRank(b *testing.B) {
	r := ranker.New(ranker.DefaultParams())
	for _, docs := range []int{100, 1000, 10000} {
		x := syntheticIndex(docs, 100)
		terms := ranker.Uniform([]string{"old", "town", "castl"})
		candidates := index.IntersectAll(x.Postings("old"), x.Postings("town"), x.Postings("castl"))
		b.Run(fmt.Sprintf("docs_%d", docs), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				r.Rank(x, terms, candidates)
			}
		})
	}
}

func BenchmarkExecute(b *testing.B) {
	x := syntheticIndex(5000, 150)
	syn := expander.NewSynonyms(map[string][]string{"castle": {"fortress", "palace"}}, norm, 0.5, 2)
	exec := executor.New(staticSource{x}, ranker.New(ranker.DefaultParams()), executor.Options{Expander: syn})
	p := parser.New(norm)

	for _, q := range []string{"old town", "castle OR museum OR garden", "university research NOT hospital"} {
		plan := p.Parse(q)
		b.Run(q, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := exec.Execute(context.Background(), plan, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExecuteParallel(b *testing.B) {
	x := syntheticIndex(5000, 150)
	exec := executor.New(staticSource{x}, ranker.New(ranker.DefaultParams()), executor.Options{})
	plan := parser.New(norm).Parse("old castle")

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := exec.Execute(context.Background(), plan, 10); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
