// Package catalog mirrors document metadata into PostgreSQL so it can be
// queried outside the crawler's JSON state.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/docstore"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS crawl_documents (
	doc_id      INTEGER PRIMARY KEY,
	url         TEXT NOT NULL UNIQUE,
	fingerprint NUMERIC(20) NOT NULL,
	freshness   TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	published   TEXT NOT NULL DEFAULT '',
	token_count INTEGER NOT NULL DEFAULT 0,
	fetched_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const upsertSQL = `INSERT INTO crawl_documents
	(doc_id, url, fingerprint, freshness, title, description, published, token_count, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (doc_id) DO UPDATE SET
	fingerprint = EXCLUDED.fingerprint,
	freshness   = EXCLUDED.freshness,
	title       = EXCLUDED.title,
	description = EXCLUDED.description,
	published   = EXCLUDED.published,
	token_count = EXCLUDED.token_count,
	fetched_at  = EXCLUDED.fetched_at,
	updated_at  = NOW()`

// Entry is one catalog row.
type Entry struct {
	DocID       int
	URL         string
	Fingerprint uint64
	Freshness   string
	Title       string
	TokenCount  int
}

// Catalog writes document metadata to the crawl_documents table.
type Catalog struct {
	client *postgres.Client
	logger *slog.Logger
}

// New creates the table if needed and returns a Catalog.
func New(ctx context.Context, client *postgres.Client) (*Catalog, error) {
	if err := client.Migrate(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}
	return &Catalog{
		client: client,
		logger: slog.Default().With("component", "catalog"),
	}, nil
}

// Upsert inserts or refreshes the row of doc.
func (c *Catalog) Upsert(ctx context.Context, doc docstore.Document) error {
	_, err := c.client.DB.ExecContext(ctx, upsertSQL,
		doc.ID, doc.URL, strconv.FormatUint(doc.Fingerprint, 10), doc.Freshness,
		doc.Title, doc.Description, doc.Published, len(doc.Tokens), doc.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting doc %d: %w", doc.ID, err)
	}
	return nil
}

// Sync upserts every document in one transaction.
func (c *Catalog) Sync(ctx context.Context, docs []docstore.Document) error {
	err := c.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, doc := range docs {
			if _, err := stmt.ExecContext(ctx,
				doc.ID, doc.URL, strconv.FormatUint(doc.Fingerprint, 10), doc.Freshness,
				doc.Title, doc.Description, doc.Published, len(doc.Tokens), doc.FetchedAt,
			); err != nil {
				return fmt.Errorf("upserting doc %d: %w", doc.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("syncing catalog: %w", err)
	}
	c.logger.Info("catalog synced", "documents", len(docs))
	return nil
}

// Get returns the row for docID.
func (c *Catalog) Get(ctx context.Context, docID int) (Entry, error) {
	var (
		e  Entry
		fp string
	)
	err := c.client.DB.QueryRowContext(ctx,
		`SELECT doc_id, url, fingerprint::TEXT, freshness, title, token_count FROM crawl_documents WHERE doc_id = $1`,
		docID,
	).Scan(&e.DocID, &e.URL, &fp, &e.Freshness, &e.Title, &e.TokenCount)
	if err != nil {
		return Entry{}, fmt.Errorf("loading doc %d: %w", docID, err)
	}
	if e.Fingerprint, err = strconv.ParseUint(fp, 10, 64); err != nil {
		return Entry{}, fmt.Errorf("parsing fingerprint of doc %d: %w", docID, err)
	}
	return e, nil
}

// Count returns the number of catalogued documents.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.client.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawl_documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting catalog: %w", err)
	}
	return n, nil
}
