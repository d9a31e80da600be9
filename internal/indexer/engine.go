package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/docstore"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
)

const defaultSnapshotName = "index.tsix"

// Stats summarises the index currently served by an Engine.
type Stats struct {
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	AvgDocLen float64   `json:"avg_doc_len"`
	BuiltAt   time.Time `json:"built_at"`
	Snapshot  string    `json:"snapshot"`
}

// Engine owns the current index and its on-disk snapshot. Readers get the
// whole index swapped atomically on Rebuild or Reload.
type Engine struct {
	cfg      config.IndexerConfig
	path     string
	mu       sync.RWMutex
	current  *index.Index
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine prepares the data directory and loads an existing snapshot. A
// missing or unreadable snapshot leaves the engine empty until the next
// Rebuild or Reload.
func NewEngine(cfg config.IndexerConfig, m *metrics.Metrics) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	name := cfg.SnapshotName
	if name == "" {
		name = defaultSnapshotName
	}
	e := &Engine{
		cfg:     cfg,
		path:    filepath.Join(cfg.DataDir, name),
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
	if err := e.Reload(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.logger.Info("no index snapshot yet", "path", e.path)
		} else {
			e.logger.Warn("ignoring unreadable index snapshot", "path", e.path, "error", err)
		}
	}
	return e, nil
}

// SetNotifier registers n to be told about each rebuild.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	e.notifier = n
	e.mu.Unlock()
}

// Rebuild indexes docs from scratch, persists the snapshot and swaps it in.
// The served index is left untouched when persisting fails.
func (e *Engine) Rebuild(ctx context.Context, docs []docstore.Document) (Stats, error) {
	start := time.Now()
	x := Build(docs)
	if err := segment.Write(e.path, x); err != nil {
		return Stats{}, fmt.Errorf("persisting index: %w", err)
	}

	e.mu.Lock()
	e.current = x
	notifier := e.notifier
	e.mu.Unlock()

	stats := e.statsOf(x)
	e.observe(stats, time.Since(start))
	e.logger.Info("index rebuilt",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"avg_doc_len", stats.AvgDocLen,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if notifier != nil && e.cfg.PublishEvents {
		ev := CompleteEvent{
			Snapshot:  e.path,
			Documents: stats.Documents,
			Terms:     stats.Terms,
			BuiltAt:   stats.BuiltAt,
		}
		if err := notifier.IndexComplete(ctx, ev); err != nil {
			e.logger.Warn("index completion not published", "error", err)
		}
	}
	return stats, nil
}

// Reload replaces the served index with the snapshot on disk. On failure the
// previous index stays in place.
func (e *Engine) Reload() error {
	x, err := segment.Read(e.path)
	if err != nil {
		return fmt.Errorf("loading snapshot %s: %w", e.path, err)
	}
	e.mu.Lock()
	e.current = x
	e.mu.Unlock()

	stats := e.statsOf(x)
	e.observe(stats, 0)
	e.logger.Info("index snapshot loaded",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"built_at", stats.BuiltAt,
	)
	return nil
}

// Index returns the served index or ErrIndexNotReady.
func (e *Engine) Index() (*index.Index, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	return e.current, nil
}

func (e *Engine) Ready() bool {
	_, err := e.Index()
	return err == nil
}

func (e *Engine) Path() string {
	return e.path
}

func (e *Engine) Stats() Stats {
	x, err := e.Index()
	if err != nil {
		return Stats{Snapshot: e.path}
	}
	return e.statsOf(x)
}

func (e *Engine) statsOf(x *index.Index) Stats {
	return Stats{
		Documents: x.DocCount,
		Terms:     len(x.Skip),
		AvgDocLen: x.AvgDocLen,
		BuiltAt:   x.BuiltAt,
		Snapshot:  e.path,
	}
}

func (e *Engine) observe(s Stats, buildTime time.Duration) {
	if e.metrics == nil {
		return
	}
	if buildTime > 0 {
		e.metrics.IndexBuildDuration.Observe(buildTime.Seconds())
	}
	e.metrics.IndexedTerms.Set(float64(s.Terms))
	e.metrics.IndexedDocs.Set(float64(s.Documents))
}
