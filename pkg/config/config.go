// Package config loads and validates process configuration from YAML files
// with environment-variable overrides. A .env file in the working directory,
// if present, is loaded into the environment first.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/anhducle98/simple-search/pkg/errors"
)

// Unlimited disables the per-query document limit.
const Unlimited = -1

// Config is the top-level configuration shared by every process in a group.
type Config struct {
	Cluster   ClusterConfig   `yaml:"cluster"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Search    SearchConfig    `yaml:"search"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ClusterConfig describes the process group and how its members connect.
type ClusterConfig struct {
	Procs           int           `yaml:"procs"`
	Rank            int           `yaml:"rank"`
	ListenAddr      string        `yaml:"listenAddr"`
	CoordinatorAddr string        `yaml:"coordinatorAddr"`
	JoinTimeout     time.Duration `yaml:"joinTimeout"`
	DialAttempts    int           `yaml:"dialAttempts"`
	// PhaseTimeout bounds every coordinator receive. Zero keeps the
	// blocking behaviour where a stuck worker stalls the query forever.
	PhaseTimeout time.Duration `yaml:"phaseTimeout"`
}

// CorpusConfig locates the documents and caps how many are considered.
type CorpusConfig struct {
	Dir          string `yaml:"dir"`
	MaxDocuments int    `yaml:"maxDocuments"`
}

// ProtocolConfig bounds the size of a single wire frame.
type ProtocolConfig struct {
	MaxFrameBytes int `yaml:"maxFrameBytes"`
}

// TokenizerConfig selects the text segmentation backend.
type TokenizerConfig struct {
	Analyzer     string `yaml:"analyzer"`
	Dictionaries string `yaml:"dictionaries"`
}

// SearchConfig controls ranking output.
type SearchConfig struct {
	TopK int `yaml:"topK"`
}

// KafkaConfig holds the optional query-event sink. ConsumerGroup is used by
// the analytics service that reads the events back.
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	ConsumerGroup string   `yaml:"consumerGroup"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the coordinator's ops HTTP server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TracingConfig toggles per-query span logging.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
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
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Cluster: ClusterConfig{
			Procs:           2,
			Rank:            0,
			ListenAddr:      "127.0.0.1:7070",
			CoordinatorAddr: "127.0.0.1:7070",
			JoinTimeout:     30 * time.Second,
			DialAttempts:    10,
		},
		Corpus: CorpusConfig{
			MaxDocuments: Unlimited,
		},
		Protocol: ProtocolConfig{
			MaxFrameBytes: 1 << 20,
		},
		Tokenizer: TokenizerConfig{
			Analyzer: "builtin",
		},
		Search: SearchConfig{
			TopK: 5,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			Topic:         "search-queries",
			ConsumerGroup: "scatter-analytics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// Validate rejects configurations that cannot run a query round. It is called
// before any process coordination begins.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Corpus.Dir) == "" {
		return apperrors.Configf("missing corpus directory path")
	}
	if c.Cluster.Procs < 2 {
		return apperrors.Configf("process group needs at least one worker (procs=%d, want >= 2)", c.Cluster.Procs)
	}
	if c.Cluster.Rank < 0 || c.Cluster.Rank >= c.Cluster.Procs {
		return apperrors.Configf("rank %d outside [0, %d]", c.Cluster.Rank, c.Cluster.Procs-1)
	}
	if c.Corpus.MaxDocuments < Unlimited {
		return apperrors.Configf("max documents must be non-negative, got %d", c.Corpus.MaxDocuments)
	}
	if c.Search.TopK < 1 {
		return apperrors.Configf("top-k must be at least 1, got %d", c.Search.TopK)
	}
	if c.Protocol.MaxFrameBytes < 64 {
		return apperrors.Configf("max frame bytes too small: %d", c.Protocol.MaxFrameBytes)
	}
	if c.Cluster.PhaseTimeout < 0 {
		return apperrors.Configf("phase timeout must not be negative")
	}
	return nil
}

// IsCoordinator reports whether this process owns the query loop.
func (c *Config) IsCoordinator() bool {
	return c.Cluster.Rank == 0
}

// applyEnvOverrides reads SCATTER_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCATTER_PROCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cluster.Procs = n
		}
	}
	if v := os.Getenv("SCATTER_RANK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cluster.Rank = n
		}
	}
	if v := os.Getenv("SCATTER_LISTEN_ADDR"); v != "" {
		cfg.Cluster.ListenAddr = v
	}
	if v := os.Getenv("SCATTER_COORDINATOR_ADDR"); v != "" {
		cfg.Cluster.CoordinatorAddr = v
	}
	if v := os.Getenv("SCATTER_PHASE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cluster.PhaseTimeout = d
		}
	}
	if v := os.Getenv("SCATTER_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("SCATTER_TOKENIZER_ANALYZER"); v != "" {
		cfg.Tokenizer.Analyzer = v
	}
	if v := os.Getenv("SCATTER_TOKENIZER_DICTIONARIES"); v != "" {
		cfg.Tokenizer.Dictionaries = v
	}
	if v := os.Getenv("SCATTER_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("SCATTER_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("SCATTER_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCATTER_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SCATTER_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
			cfg.Metrics.Enabled = true
		}
	}
}
