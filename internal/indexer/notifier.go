package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/kafka"
)

// CompleteEvent announces that a new snapshot is ready to be loaded.
type CompleteEvent struct {
	EventID   string    `json:"event_id"`
	Snapshot  string    `json:"snapshot"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	BuiltAt   time.Time `json:"built_at"`
}

// Notifier is told about every successful rebuild.
type Notifier interface {
	IndexComplete(ctx context.Context, ev CompleteEvent) error
	Close() error
}

// KafkaNotifier publishes CompleteEvent to the index-complete topic.
type KafkaNotifier struct {
	producer *kafka.Producer
}

func NewKafkaNotifier(cfg config.KafkaConfig) *KafkaNotifier {
	return &KafkaNotifier{producer: kafka.NewProducer(cfg, cfg.Topics.IndexComplete, false)}
}

func (n *KafkaNotifier) IndexComplete(ctx context.Context, ev CompleteEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if err := n.producer.Publish(ctx, kafka.Event{Key: ev.Snapshot, Value: ev}); err != nil {
		return fmt.Errorf("publishing index completion: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
