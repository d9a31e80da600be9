// Package indexer turns the crawler's document store into an immutable
// search index and keeps a persisted snapshot of it for the searcher.
package indexer

import (
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/docstore"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/index"
)

// Build performs a full rebuild over docs. Every document counts toward the
// corpus size D, including ones whose tokens are empty.
func Build(docs []docstore.Document) *index.Index {
	b := index.NewBuilder()
	for _, doc := range docs {
		b.Add(doc.ID, index.DocMeta{
			URL:         doc.URL,
			Title:       doc.Title,
			Description: doc.Description,
		}, doc.Tokens)
	}
	return b.Build()
}
