package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.K1 != 1.5 || cfg.Search.B != 0.75 || cfg.Search.ProximityWindow != 3 {
		t.Errorf("ranking defaults = %+v", cfg.Search)
	}
	if cfg.Crawler.SimHashThreshold != 3 || cfg.Crawler.RobotsFallback != "allow" {
		t.Errorf("crawler defaults = %+v", cfg.Crawler)
	}
	if cfg.Kafka.Enabled() {
		t.Error("kafka is off without brokers")
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
crawler:
  maxDepth: 4
  seeds: ["https://www.tuebingen.de/"]
search:
  strictProximity: true
  synonyms:
    castle: [fortress, palace]
indexer:
  rebuildDelay: 2s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SP_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SP_CRAWLER_MAX_DEPTH", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Crawler.MaxDepth != 1 {
		t.Errorf("env override lost: maxDepth = %d", cfg.Crawler.MaxDepth)
	}
	if len(cfg.Crawler.Seeds) != 1 || !cfg.Search.StrictProximity || len(cfg.Search.Synonyms["castle"]) != 2 {
		t.Errorf("yaml not applied: %+v", cfg.Search)
	}
	if cfg.Indexer.RebuildDelay != 2*time.Second {
		t.Errorf("rebuildDelay = %v", cfg.Indexer.RebuildDelay)
	}
	if !cfg.Kafka.Enabled() || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Search.K1 != 1.5 {
		t.Error("unset fields keep their defaults")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative depth", func(c *Config) { c.Crawler.MaxDepth = -1 }},
		{"threshold above 64", func(c *Config) { c.Crawler.SimHashThreshold = 65 }},
		{"no workers", func(c *Config) { c.Crawler.MaxWorkers = 0 }},
		{"bad fallback", func(c *Config) { c.Crawler.RobotsFallback = "maybe" }},
		{"b above one", func(c *Config) { c.Search.B = 1.5 }},
		{"negative window", func(c *Config) { c.Search.ProximityWindow = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}
