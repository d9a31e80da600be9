// Package events publishes crawl progress to Kafka so the indexer can
// rebuild when a crawl completes.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/kafka"
)

// PageEvent announces a new or updated document.
type PageEvent struct {
	EventID     string    `json:"event_id"`
	RunID       string    `json:"run_id"`
	DocID       int       `json:"doc_id"`
	URL         string    `json:"url"`
	Outcome     string    `json:"outcome"`
	Fingerprint uint64    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
}

// CompleteEvent is published once per crawl run after state is flushed.
type CompleteEvent struct {
	EventID    string    `json:"event_id"`
	RunID      string    `json:"run_id"`
	Visited    int64     `json:"visited"`
	New        int64     `json:"new"`
	Updated    int64     `json:"updated"`
	Documents  int       `json:"documents"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	StopReason string    `json:"stop_reason"`
}

// Sink receives crawl events.
type Sink interface {
	Page(ctx context.Context, ev PageEvent)
	Complete(ctx context.Context, ev CompleteEvent) error
	Close() error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Page(context.Context, PageEvent) {}

func (NopSink) Complete(context.Context, CompleteEvent) error { return nil }

func (NopSink) Close() error { return nil }

// KafkaSink publishes page events asynchronously and the completion event
// synchronously.
type KafkaSink struct {
	pages    *kafka.Producer
	complete *kafka.Producer
	logger   *slog.Logger
}

// NewKafkaSink creates producers for the crawl topics of cfg.
func NewKafkaSink(cfg config.KafkaConfig) *KafkaSink {
	return &KafkaSink{
		pages:    kafka.NewProducer(cfg, cfg.Topics.CrawlPages, true),
		complete: kafka.NewProducer(cfg, cfg.Topics.CrawlComplete, false),
		logger:   slog.Default().With("component", "crawl-events"),
	}
}

// Page implements Sink. Failures are logged.
func (s *KafkaSink) Page(ctx context.Context, ev PageEvent) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if err := s.pages.Publish(ctx, kafka.Event{Key: ev.URL, Value: ev}); err != nil {
		s.logger.Warn("publishing page event failed", "url", ev.URL, "error", err)
	}
}

// Complete implements Sink.
func (s *KafkaSink) Complete(ctx context.Context, ev CompleteEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if err := s.complete.Publish(ctx, kafka.Event{Key: ev.RunID, Value: ev}); err != nil {
		return fmt.Errorf("publishing crawl completion: %w", err)
	}
	return nil
}

// Close flushes and closes both producers.
func (s *KafkaSink) Close() error {
	errPages := s.pages.Close()
	errComplete := s.complete.Close()
	if errPages != nil {
		return errPages
	}
	return errComplete
}
