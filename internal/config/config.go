// Package config loads service settings from layered sources: built-in
// defaults, an optional YAML file, then environment variables, with env
// taking highest precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfigPaths lists where config files are searched, in order.
var defaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/statatlas/config.yaml",
}

// Config holds all service settings.
type Config struct {
	HTTPAddr        string        `koanf:"http_addr"`
	LogLevel        string        `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	Data    DataConfig    `koanf:"data"`
	Cluster ClusterConfig `koanf:"cluster"`
	Kafka   KafkaConfig   `koanf:"kafka"`
}

// DataConfig locates the raw source files and the snapshot database.
type DataConfig struct {
	RawDir       string `koanf:"raw_dir"`
	DatabasePath string `koanf:"database_path"`
	WHOPath      string `koanf:"who_path"`
}

// ClusterConfig controls K-Means fitting.
type ClusterConfig struct {
	Count int   `koanf:"count"`
	Seed  int64 `koanf:"seed"`
}

// KafkaConfig controls the optional tract export stream.
type KafkaConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

func defaultConfig() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
		Data: DataConfig{
			RawDir:       "data/raw",
			DatabasePath: "data/statatlas.db",
			WHOPath:      "data/raw/who_air_quality.json",
		},
		Cluster: ClusterConfig{
			Count: 5,
			Seed:  42,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "tract-scores",
		},
	}
}

// Load reads configuration with env > file > defaults precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Broker lists come in from env as comma-separated strings.
	if v, ok := k.Get("kafka.brokers").(string); ok {
		k.Set("kafka.brokers", splitList(v))
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("invalid SHUTDOWN_TIMEOUT")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	if c.Cluster.Count < 2 {
		return fmt.Errorf("invalid CLUSTER_COUNT %d", c.Cluster.Count)
	}
	if c.Data.RawDir == "" {
		return errors.New("DATA_RAW_DIR is required")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("KAFKA_EXPORT_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if c.Kafka.Topic == "" {
			return errors.New("KAFKA_EXPORT_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps flat environment variable names onto config paths.
// Unmapped variables are dropped so unrelated env does not leak in.
func envTransform(key string) string {
	mappings := map[string]string{
		"HTTP_ADDR":            "http_addr",
		"LOG_LEVEL":            "log_level",
		"LOG_FORMAT":           "log_format",
		"SHUTDOWN_TIMEOUT":     "shutdown_timeout",
		"DATA_RAW_DIR":         "data.raw_dir",
		"DATABASE_PATH":        "data.database_path",
		"WHO_CONTEXT_PATH":     "data.who_path",
		"CLUSTER_COUNT":        "cluster.count",
		"CLUSTER_SEED":         "cluster.seed",
		"KAFKA_EXPORT_ENABLED": "kafka.enabled",
		"KAFKA_BROKERS":        "kafka.brokers",
		"KAFKA_TOPIC":          "kafka.topic",
	}
	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return ""
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
