package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/crawler/normalizer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/expander"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/internal/searcher/rerank"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Topical-Search-Engine/pkg/resilience"
)

// reloader swaps in the newest snapshot and drops results computed from the
// old one.
type reloader struct {
	engine *indexer.Engine
	cache  *cache.QueryCache
}

func (r reloader) Reload() error {
	if err := r.engine.Reload(); err != nil {
		return err
	}
	if r.cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.cache.Invalidate(ctx)
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Indexer.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, "searcher")
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	engine, err := indexer.NewEngine(cfg.Indexer, m)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	if !engine.Ready() {
		slog.Warn("no index snapshot loaded, searches return 503 until one is built", "path", engine.Path())
	}

	norm := normalizer.New(normalizer.Options{
		Language:       cfg.Crawler.Language,
		MinTokenLength: cfg.Crawler.MinTokenLength,
	})

	execOpts := executor.Options{
		Expander: expander.NewSynonyms(cfg.Search.Synonyms, norm, cfg.Search.SynonymWeight, expander.DefaultMaxPerTerm),
		Metrics:  m,
	}
	if cfg.Search.Rerank.Endpoint != "" {
		scorer := rerank.NewHTTPScorer(cfg.Search.Rerank, nil, resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(name string, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		})
		execOpts.Reranker = rerank.NewHybrid(scorer, cfg.Search.Rerank.Lambda, cfg.Search.Rerank.TopK)
		execOpts.RerankDepth = cfg.Search.Rerank.TopK
		slog.Info("hybrid rerank enabled",
			"endpoint", cfg.Search.Rerank.Endpoint,
			"lambda", cfg.Search.Rerank.Lambda,
			"top_k", cfg.Search.Rerank.TopK,
		)
	}
	exec := executor.New(engine, ranker.New(ranker.ParamsFromConfig(cfg.Search)), execOpts)

	cacheOpts := cache.Options{
		RemoteTTL:   cfg.Redis.CacheTTL,
		LocalTTL:    cfg.Search.LocalCacheTTL,
		LocalMaxMiB: cfg.Search.LocalCacheMaxMiB,
		Metrics:     m,
	}
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, shared cache tier disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			cacheOpts.Remote = redisClient
		}
	}
	queryCache, err := cache.New(cacheOpts)
	if err != nil {
		slog.Error("failed to create query cache", "error", err)
		os.Exit(1)
	}
	defer queryCache.Close()
	slog.Info("search cache enabled",
		"local_ttl", cfg.Search.LocalCacheTTL,
		"redis", redisClient != nil,
		"redis_ttl", cfg.Redis.CacheTTL,
	)

	if cfg.Kafka.Enabled() {
		indexConsumer := kafka.NewConsumer(
			cfg.Kafka,
			cfg.Kafka.Topics.IndexComplete,
			"searcher",
			consumer.HandleIndexComplete(reloader{engine: engine, cache: queryCache}),
		)
		go func() {
			if err := indexConsumer.Start(ctx); err != nil {
				slog.Error("index completion consumer error", "error", err)
			}
		}()
		slog.Info("listening for index completions", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if !engine.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot loaded"}
		}
		s := engine.Stats()
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", s.Documents)}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, true))
	}

	h := handler.New(exec, parser.New(norm), handler.Options{
		Cache:        queryCache,
		Stats:        engine,
		Metrics:      m,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimitRPS > 0 {
		limiter := middleware.NewClientLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, 10*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					limiter.Sweep(now)
				}
			}
		}()
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
