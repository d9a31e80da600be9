// Package config loads and validates application configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Crawler, Indexer, Search, Postgres, Kafka, Redis, etc.).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimitRPS caps requests per client per second; 0 disables it.
	RateLimitRPS   float64  `yaml:"rateLimitRPS"`
	RateLimitBurst int      `yaml:"rateLimitBurst"`
	CORSOrigins    []string `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters. The document catalog
// mirror is only started when Enabled is set.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables event publishing.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CrawlPages    string `yaml:"crawlPages"`
	CrawlComplete string `yaml:"crawlComplete"`
	IndexComplete string `yaml:"indexComplete"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// CrawlerConfig controls the frontier, politeness policy and persisted state
// of the crawler.
type CrawlerConfig struct {
	Seeds            []string      `yaml:"seeds"`
	StateDir         string        `yaml:"stateDir"`
	UserAgent        string        `yaml:"userAgent"`
	MaxDepth         int           `yaml:"maxDepth"`
	DefaultDelay     time.Duration `yaml:"defaultDelay"`
	SimHashThreshold int           `yaml:"simhashThreshold"`
	MaxWorkers       int           `yaml:"maxWorkers"`
	IdleTimeout      time.Duration `yaml:"idleTimeout"`
	ManagerInterval  time.Duration `yaml:"managerInterval"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	RobotsTimeout    time.Duration `yaml:"robotsTimeout"`
	RobotsFallback   string        `yaml:"robotsFallback"`
	UseHead          bool          `yaml:"useHead"`
	MaxBodyBytes     int64         `yaml:"maxBodyBytes"`
	TimeLimit        time.Duration `yaml:"timeLimit"`
	MaxNewPages      int           `yaml:"maxNewPages"`
	SaveInterval     int           `yaml:"saveInterval"`
	DedupNearCopies  bool          `yaml:"dedupNearCopies"`
	BreakerFailures  int           `yaml:"breakerFailures"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
	Keywords         KeywordTiers  `yaml:"keywords"`
	AllowList        []string      `yaml:"allowList"`
	AllowListBonus   float64       `yaml:"allowListBonus"`
	BlockedDomains   []string      `yaml:"blockedDomains"`
	BlockedSuffixes  []string      `yaml:"blockedSuffixes"`
	Language         string        `yaml:"language"`
	MinTokenLength   int           `yaml:"minTokenLength"`
}

// KeywordTiers lists the topical keywords for each relevance tier used by the
// frontier scorer.
type KeywordTiers struct {
	VeryRelevant []string `yaml:"veryRelevant"`
	Relevant     []string `yaml:"relevant"`
	Moderate     []string `yaml:"moderate"`
}

// IndexerConfig controls where the built index snapshot is written.
type IndexerConfig struct {
	DataDir       string        `yaml:"dataDir"`
	RebuildDelay  time.Duration `yaml:"rebuildDelay"`
	SnapshotName  string        `yaml:"snapshotName"`
	PublishEvents bool          `yaml:"publishEvents"`
}

// SearchConfig controls query execution and ranking parameters.
type SearchConfig struct {
	MaxResults       int                 `yaml:"maxResults"`
	DefaultLimit     int                 `yaml:"defaultLimit"`
	K1               float64             `yaml:"k1"`
	B                float64             `yaml:"b"`
	ProximityWindow  int                 `yaml:"proximityWindow"`
	StrictProximity  bool                `yaml:"strictProximity"`
	PhraseBonus      float64             `yaml:"phraseBonus"`
	WindowBonus      float64             `yaml:"windowBonus"`
	SynonymWeight    float64             `yaml:"synonymWeight"`
	Synonyms         map[string][]string `yaml:"synonyms"`
	Rerank           RerankConfig        `yaml:"rerank"`
	LocalCacheTTL    time.Duration       `yaml:"localCacheTTL"`
	LocalCacheMaxMiB int                 `yaml:"localCacheMaxMiB"`
}

// RerankConfig points at an optional external similarity service used for
// the hybrid secondary sort.
type RerankConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	Lambda   float64       `yaml:"lambda"`
	TopK     int           `yaml:"topK"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), loads a .env file next to the
// working directory if one exists, and applies environment-variable
// overrides. It returns a Config populated with defaults for missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the crawler or ranker cannot run with.
func (c *Config) Validate() error {
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.maxDepth must be >= 0, got %d", c.Crawler.MaxDepth)
	}
	if c.Crawler.SimHashThreshold < 0 || c.Crawler.SimHashThreshold > 64 {
		return fmt.Errorf("crawler.simhashThreshold must be in [0,64], got %d", c.Crawler.SimHashThreshold)
	}
	if c.Crawler.MaxWorkers <= 0 {
		return fmt.Errorf("crawler.maxWorkers must be positive, got %d", c.Crawler.MaxWorkers)
	}
	switch c.Crawler.RobotsFallback {
	case "allow", "deny":
	default:
		return fmt.Errorf("crawler.robotsFallback must be allow or deny, got %q", c.Crawler.RobotsFallback)
	}
	if c.Search.K1 < 0 || c.Search.B < 0 || c.Search.B > 1 {
		return fmt.Errorf("search.k1 must be >= 0 and search.b in [0,1]")
	}
	if c.Search.ProximityWindow < 0 {
		return fmt.Errorf("search.proximityWindow must be >= 0, got %d", c.Search.ProximityWindow)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "topicalsearch",
			User:            "topicalsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "topicalsearch-group",
			Topics: KafkaTopics{
				CrawlPages:    "crawl.pages",
				CrawlComplete: "crawl.complete",
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Crawler: CrawlerConfig{
			StateDir:         "data/crawl",
			UserAgent:        "TuebingenSearchBot/1.0",
			MaxDepth:         2,
			DefaultDelay:     500 * time.Millisecond,
			SimHashThreshold: 3,
			MaxWorkers:       100,
			IdleTimeout:      5 * time.Second,
			ManagerInterval:  500 * time.Millisecond,
			FetchTimeout:     10 * time.Second,
			RobotsTimeout:    5 * time.Second,
			RobotsFallback:   "allow",
			MaxBodyBytes:     5 << 20,
			SaveInterval:     50,
			DedupNearCopies:  true,
			BreakerFailures:  5,
			BreakerReset:     time.Minute,
			Keywords: KeywordTiers{
				VeryRelevant: []string{"tuebingen", "tubingen", "tübingen", "hohentuebingen", "stocherkahnrennen", "chocolart", "university", "universität", "neckar", "altstadt"},
				Relevant:     []string{"city", "tourism", "visitors", "restaurants", "cafes", "gastronomy", "food", "bars", "market", "cyber valley", "university hospital"},
				Moderate:     []string{"news", "events", "information", "travel", "sights", "attractions", "research", "students", "culture", "museums", "theatre", "music"},
			},
			AllowListBonus: 100,
			BlockedDomains: []string{"facebook.com", "twitter.com", "x.com", "instagram.com", "linkedin.com", "youtube.com", "tiktok.com", "pinterest.com"},
			BlockedSuffixes: []string{
				".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
				".zip", ".gz", ".tar", ".rar", ".7z", ".mp3", ".mp4", ".avi", ".mov",
				".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".exe", ".css", ".js", ".xml", ".rss",
			},
			Language:       "english",
			MinTokenLength: 3,
		},
		Indexer: IndexerConfig{
			DataDir:       "data/index",
			SnapshotName:  "index.tsix",
			RebuildDelay:  10 * time.Second,
			PublishEvents: true,
		},
		Search: SearchConfig{
			MaxResults:      100,
			DefaultLimit:    10,
			K1:              1.5,
			B:               0.75,
			ProximityWindow: 3,
			PhraseBonus:     1.0,
			WindowBonus:     0.5,
			SynonymWeight:   0.5,
			Rerank: RerankConfig{
				Timeout: 2 * time.Second,
				Lambda:  0.5,
				TopK:    50,
			},
			LocalCacheTTL:    30 * time.Second,
			LocalCacheMaxMiB: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = enabled
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_CRAWLER_SEEDS"); v != "" {
		cfg.Crawler.Seeds = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_CRAWLER_STATE_DIR"); v != "" {
		cfg.Crawler.StateDir = v
	}
	if v := os.Getenv("SP_CRAWLER_MAX_DEPTH"); v != "" {
		if depth, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.MaxDepth = depth
		}
	}
	if v := os.Getenv("SP_CRAWLER_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.MaxWorkers = n
		}
	}
	if v := os.Getenv("SP_CRAWLER_ROBOTS_FALLBACK"); v != "" {
		cfg.Crawler.RobotsFallback = v
	}
	if v := os.Getenv("SP_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("SP_RERANK_ENDPOINT"); v != "" {
		cfg.Search.Rerank.Endpoint = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
