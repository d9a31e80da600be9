package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/catalog"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/changedetect"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/docstore"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/events"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/extract"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/fetcher"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/frontier"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/robots"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/scheduler"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	seeds := flag.String("seeds", "", "comma-separated seed URLs (overrides config)")
	depth := flag.Int("depth", -1, "maximum link depth (overrides config)")
	delay := flag.Duration("delay", 0, "default per-domain delay (overrides config)")
	threshold := flag.Int("threshold", -1, "SimHash change threshold in bits (overrides config)")
	maxNew := flag.Int("max-new", -1, "stop after this many new pages (overrides config)")
	timeLimit := flag.Duration("time-limit", 0, "stop after this long (overrides config)")
	syncCatalog := flag.Bool("sync-catalog", false, "mirror every stored document to postgres before crawling")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	crawlCfg := cfg.Crawler
	if *seeds != "" {
		crawlCfg.Seeds = strings.Split(*seeds, ",")
	}
	if *depth >= 0 {
		crawlCfg.MaxDepth = *depth
	}
	if *delay > 0 {
		crawlCfg.DefaultDelay = *delay
	}
	if *threshold >= 0 {
		crawlCfg.SimHashThreshold = *threshold
	}
	if *maxNew >= 0 {
		crawlCfg.MaxNewPages = *maxNew
	}
	if *timeLimit > 0 {
		crawlCfg.TimeLimit = *timeLimit
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting crawler",
		"seeds", len(crawlCfg.Seeds),
		"max_depth", crawlCfg.MaxDepth,
		"state_dir", crawlCfg.StateDir,
	)
	if len(crawlCfg.Seeds) == 0 {
		slog.Warn("no seeds configured, resuming from persisted frontier only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "crawler")
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}
	m := metrics.New()

	if err := os.MkdirAll(crawlCfg.StateDir, 0o755); err != nil {
		slog.Error("failed to create state directory", "error", err)
		os.Exit(1)
	}
	paths := scheduler.StatePaths(crawlCfg.StateDir)
	store := docstore.Open(paths.Documents)
	slog.Info("document store loaded", "documents", store.Len(), "next_id", store.NextID())

	fallback, err := robots.ParseFallback(crawlCfg.RobotsFallback)
	if err != nil {
		slog.Error("invalid robots fallback", "error", err)
		os.Exit(1)
	}

	deps := scheduler.Deps{
		Store:        store,
		Fingerprints: changedetect.LoadFingerprintSet(paths.Fingerprints),
		Frontier: frontier.New(frontier.Options{
			MaxDepth:        crawlCfg.MaxDepth,
			BlockedDomains:  crawlCfg.BlockedDomains,
			BlockedSuffixes: crawlCfg.BlockedSuffixes,
			Scorer:          frontier.NewScorer(crawlCfg.Keywords, crawlCfg.AllowList, crawlCfg.AllowListBonus),
		}, store),
		Robots: robots.NewCache(robots.Options{
			UserAgent:    crawlCfg.UserAgent,
			DefaultDelay: crawlCfg.DefaultDelay,
			Timeout:      crawlCfg.RobotsTimeout,
			Fallback:     fallback,
		}, m),
		Fetcher: fetcher.New(fetcher.Options{
			UserAgent:    crawlCfg.UserAgent,
			Timeout:      crawlCfg.FetchTimeout,
			MaxBodyBytes: crawlCfg.MaxBodyBytes,
		}, m),
		Extractor: extract.NewHTMLExtractor(),
		Normalizer: normalizer.New(normalizer.Options{
			Language:       crawlCfg.Language,
			MinTokenLength: crawlCfg.MinTokenLength,
		}),
		Detector: changedetect.NewDetector(crawlCfg.SimHashThreshold),
		Metrics:  m,
	}

	if cfg.Kafka.Enabled() {
		sink := events.NewKafkaSink(cfg.Kafka)
		defer sink.Close()
		deps.Events = sink
		slog.Info("crawl events enabled",
			"pages_topic", cfg.Kafka.Topics.CrawlPages,
			"complete_topic", cfg.Kafka.Topics.CrawlComplete,
		)
	}

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		cat, err := catalog.New(ctx, pg)
		if err != nil {
			slog.Error("failed to prepare document catalog", "error", err)
			os.Exit(1)
		}
		if *syncCatalog {
			if err := cat.Sync(ctx, store.All()); err != nil {
				slog.Error("catalog sync failed", "error", err)
				os.Exit(1)
			}
			slog.Info("catalog synced", "documents", store.Len())
		}
		deps.Mirror = cat
	}

	sched, err := scheduler.New(crawlCfg, deps)
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	stats, err := sched.Crawl(ctx, crawlCfg.Seeds)
	if err != nil {
		slog.Error("crawl state flush failed", "error", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(stats); encErr != nil {
		slog.Error("failed to write crawl summary", "error", encErr)
	}
	if err != nil {
		os.Exit(1)
	}
	slog.Info("crawler stopped", "reason", stats.StopReason)
}
