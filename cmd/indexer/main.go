package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/docstore"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/scheduler"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	watch := flag.Bool("watch", false, "keep running and rebuild on every crawl completion event")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"state_dir", cfg.Crawler.StateDir,
		"data_dir", cfg.Indexer.DataDir,
		"watch", *watch,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		if *watch {
			shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "indexer")
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				shutdownMetrics(shutdownCtx)
			}()
		}
	}

	engine, err := indexer.NewEngine(cfg.Indexer, m)
	if err != nil {
		slog.Error("failed to create index engine", "error", err)
		os.Exit(1)
	}
	if cfg.Kafka.Enabled() && cfg.Indexer.PublishEvents {
		notifier := indexer.NewKafkaNotifier(cfg.Kafka)
		defer notifier.Close()
		engine.SetNotifier(notifier)
	}

	docsPath := scheduler.StatePaths(cfg.Crawler.StateDir).Documents
	load := func() ([]docstore.Document, error) {
		return docstore.Open(docsPath).All(), nil
	}

	docs, _ := load()
	stats, err := engine.Rebuild(ctx, docs)
	if err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
	slog.Info("index built",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"snapshot", stats.Snapshot,
	)
	if !*watch {
		return
	}
	if !cfg.Kafka.Enabled() {
		slog.Error("watch mode needs kafka brokers")
		os.Exit(1)
	}

	watcher := consumer.NewWatcher(engine, load, cfg.Indexer.RebuildDelay)
	crawlConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CrawlComplete, "indexer", watcher.HandleCrawlComplete())

	slog.Info("indexer watching for crawl completions",
		"topic", cfg.Kafka.Topics.CrawlComplete,
		"group", cfg.Kafka.ConsumerGroup,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return crawlConsumer.Start(gctx) })
	g.Go(func() error { return watcher.Run(gctx) })
	if err := g.Wait(); err != nil {
		slog.Error("indexer stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer stopped")
}
