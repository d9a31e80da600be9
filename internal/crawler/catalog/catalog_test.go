package catalog

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/docstore"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/postgres"
)

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newTestCatalog skips the test when PostgreSQL is unavailable.
func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	cfg := config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "topicalsearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "topicalsearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, err := postgres.New(ctx, cfg)
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	c, err := New(context.Background(), client)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.DB.Exec(`TRUNCATE crawl_documents`); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestUpsertAndGet(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	doc := docstore.Document{
		ID:          3,
		URL:         "https://example.org/a",
		Tokens:      []string{"alpha", "beta"},
		Fingerprint: ^uint64(0),
		Title:       "Alpha",
		FetchedAt:   time.Now(),
	}
	if err := c.Upsert(ctx, doc); err != nil {
		t.Fatal(err)
	}
	doc.Title = "Alpha v2"
	doc.Freshness = "Wed, 02 Jul 2025 10:00:00 GMT"
	if err := c.Upsert(ctx, doc); err != nil {
		t.Fatal(err)
	}

	got, err := c.Get(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Alpha v2" || got.Fingerprint != ^uint64(0) || got.TokenCount != 2 || got.Freshness != doc.Freshness {
		t.Errorf("Get = %+v", got)
	}
	if n, err := c.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestSync(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	docs := []docstore.Document{
		{ID: 0, URL: "https://example.org/0", FetchedAt: time.Now()},
		{ID: 1, URL: "https://example.org/1", FetchedAt: time.Now()},
	}
	if err := c.Sync(ctx, docs); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.Count(ctx); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}
