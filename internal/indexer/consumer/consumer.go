// Package consumer connects the indexer engine to Kafka: the indexer
// rebuilds after crawl.complete and the searcher reloads after
// index.complete.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/docstore"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/events"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/kafka"
)

// Rebuilder is the part of indexer.Engine the watcher drives.
type Rebuilder interface {
	Rebuild(ctx context.Context, docs []docstore.Document) (indexer.Stats, error)
}

// Loader returns the current document store contents.
type Loader func() ([]docstore.Document, error)

// Watcher coalesces crawl completion events into index rebuilds. Events that
// arrive while a rebuild is waiting are folded into it.
type Watcher struct {
	engine  Rebuilder
	load    Loader
	delay   time.Duration
	trigger chan struct{}
	logger  *slog.Logger
}

// NewWatcher creates a Watcher that waits delay after the first pending event
// before rebuilding.
func NewWatcher(engine Rebuilder, load Loader, delay time.Duration) *Watcher {
	return &Watcher{
		engine:  engine,
		load:    load,
		delay:   delay,
		trigger: make(chan struct{}, 1),
		logger:  slog.Default().With("component", "index-watcher"),
	}
}

// HandleCrawlComplete returns a Kafka MessageHandler that schedules a rebuild
// for each crawl completion event. Undecodable messages are logged and
// committed.
func (w *Watcher) HandleCrawlComplete() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[events.CompleteEvent](value)
		if err != nil {
			w.logger.Error("failed to decode crawl completion",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		w.logger.Info("crawl completed",
			"run_id", ev.RunID,
			"new", ev.New,
			"updated", ev.Updated,
			"stop_reason", ev.StopReason,
		)
		w.Trigger()
		return nil
	}
}

// Trigger schedules a rebuild without blocking.
func (w *Watcher) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run performs scheduled rebuilds until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.trigger:
		}
		if w.delay > 0 {
			timer := time.NewTimer(w.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
		// events seen during the delay are covered by this rebuild
		select {
		case <-w.trigger:
		default:
		}
		w.rebuild(ctx)
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	docs, err := w.load()
	if err != nil {
		w.logger.Error("loading documents for rebuild", "error", err)
		return
	}
	if _, err := w.engine.Rebuild(ctx, docs); err != nil {
		w.logger.Error("index rebuild failed", "error", err)
	}
}

// Reloader is the part of indexer.Engine the searcher drives.
type Reloader interface {
	Reload() error
}

// HandleIndexComplete returns a Kafka MessageHandler that reloads the
// snapshot whenever the indexer announces a new one.
func HandleIndexComplete(engine Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-reloader")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[indexer.CompleteEvent](value)
		if err != nil {
			logger.Error("failed to decode index completion",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := engine.Reload(); err != nil {
			logger.Error("reloading index failed", "snapshot", ev.Snapshot, "error", err)
			return nil
		}
		logger.Info("index reloaded", "documents", ev.Documents, "built_at", ev.BuiltAt)
		return nil
	}
}
