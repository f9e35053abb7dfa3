package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/anhducle98/simple-search/pkg/errors"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Cluster.Procs != 2 || cfg.Cluster.Rank != 0 {
		t.Fatalf("cluster = %+v, want procs=2 rank=0", cfg.Cluster)
	}
	if cfg.Corpus.MaxDocuments != Unlimited {
		t.Errorf("MaxDocuments = %d, want Unlimited", cfg.Corpus.MaxDocuments)
	}
	if cfg.Search.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.Search.TopK)
	}
	if cfg.Cluster.PhaseTimeout != 0 {
		t.Errorf("PhaseTimeout = %v, want 0", cfg.Cluster.PhaseTimeout)
	}
	if cfg.Kafka.Enabled || cfg.Metrics.Enabled {
		t.Error("optional sinks should be disabled by default")
	}
	if !cfg.IsCoordinator() {
		t.Error("rank 0 should be the coordinator")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scatter.yaml")
	data := `
cluster:
  procs: 4
  rank: 2
  coordinatorAddr: "10.0.0.1:7070"
  phaseTimeout: 3s
corpus:
  dir: /data/corpus
  maxDocuments: 100
search:
  topK: 10
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.Procs != 4 || cfg.Cluster.Rank != 2 {
		t.Errorf("cluster = %+v", cfg.Cluster)
	}
	if cfg.Cluster.CoordinatorAddr != "10.0.0.1:7070" {
		t.Errorf("CoordinatorAddr = %q", cfg.Cluster.CoordinatorAddr)
	}
	if cfg.Cluster.PhaseTimeout != 3*time.Second {
		t.Errorf("PhaseTimeout = %v, want 3s", cfg.Cluster.PhaseTimeout)
	}
	if cfg.Corpus.Dir != "/data/corpus" || cfg.Corpus.MaxDocuments != 100 {
		t.Errorf("corpus = %+v", cfg.Corpus)
	}
	if cfg.Search.TopK != 10 {
		t.Errorf("TopK = %d, want 10", cfg.Search.TopK)
	}
	// Unset keys keep their defaults.
	if cfg.Protocol.MaxFrameBytes != 1<<20 {
		t.Errorf("MaxFrameBytes = %d, want default", cfg.Protocol.MaxFrameBytes)
	}
	if cfg.IsCoordinator() {
		t.Error("rank 2 should not be the coordinator")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("cluster: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCATTER_PROCS", "3")
	t.Setenv("SCATTER_RANK", "1")
	t.Setenv("SCATTER_CORPUS_DIR", "/srv/docs")
	t.Setenv("SCATTER_PHASE_TIMEOUT", "250ms")
	t.Setenv("SCATTER_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SCATTER_METRICS_PORT", "9200")
	t.Setenv("SCATTER_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.Procs != 3 || cfg.Cluster.Rank != 1 {
		t.Errorf("cluster = %+v", cfg.Cluster)
	}
	if cfg.Corpus.Dir != "/srv/docs" {
		t.Errorf("Dir = %q", cfg.Corpus.Dir)
	}
	if cfg.Cluster.PhaseTimeout != 250*time.Millisecond {
		t.Errorf("PhaseTimeout = %v", cfg.Cluster.PhaseTimeout)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9200 {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("SCATTER_PROCS", "many")
	t.Setenv("SCATTER_PHASE_TIMEOUT", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.Procs != 2 {
		t.Errorf("Procs = %d, want default 2", cfg.Cluster.Procs)
	}
	if cfg.Cluster.PhaseTimeout != 0 {
		t.Errorf("PhaseTimeout = %v, want 0", cfg.Cluster.PhaseTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero documents", func(c *Config) { c.Corpus.MaxDocuments = 0 }, false},
		{"missing corpus", func(c *Config) { c.Corpus.Dir = "  " }, true},
		{"single process", func(c *Config) { c.Cluster.Procs = 1 }, true},
		{"negative rank", func(c *Config) { c.Cluster.Rank = -1 }, true},
		{"rank past group", func(c *Config) { c.Cluster.Procs = 3; c.Cluster.Rank = 3 }, true},
		{"last rank", func(c *Config) { c.Cluster.Procs = 3; c.Cluster.Rank = 2 }, false},
		{"negative limit", func(c *Config) { c.Corpus.MaxDocuments = -2 }, true},
		{"zero top-k", func(c *Config) { c.Search.TopK = 0 }, true},
		{"tiny frames", func(c *Config) { c.Protocol.MaxFrameBytes = 16 }, true},
		{"negative phase timeout", func(c *Config) { c.Cluster.PhaseTimeout = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Corpus.Dir = "testdata"
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrConfig) {
				t.Errorf("error %v does not wrap ErrConfig", err)
			}
			if err != nil && apperrors.ExitCode(err) != apperrors.ExitConfig {
				t.Errorf("ExitCode = %d, want %d", apperrors.ExitCode(err), apperrors.ExitConfig)
			}
		})
	}
}
