package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the process-level configuration. Values are resolved in layers:
// built-in defaults, then config/config.yml, then config/config.local.yml,
// then environment variables.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	NATS    NATSConfig    `yaml:"nats"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

type StorageConfig struct {
	// MongoURI is the already-resolved connection string. Credential storage
	// lives with the host, not here.
	MongoURI     string `yaml:"mongo_uri"`
	DatabaseName string `yaml:"database_name"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type WatchConfig struct {
	// DefinitionsFile points at the JSON or YAML file listing the watches to
	// run. Empty means no watches are started.
	DefinitionsFile string `yaml:"definitions_file"`

	// ShutdownTimeoutSeconds bounds how long Shutdown waits for in-flight
	// event processing.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig resolves the configuration from all layers.
func LoadConfig() *Config {
	cfg := defaultConfig()
	loadFile(cfg, "config/config.yml")
	loadFile(cfg, "config/config.local.yml")
	applyEnv(cfg)
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			MongoURI:     "mongodb://localhost:27017",
			DatabaseName: "mongotrigger",
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Watch: WatchConfig{
			ShutdownTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // missing layers are fine
	}
	_ = yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Storage.MongoURI = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Storage.DatabaseName = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("WATCHES_FILE"); v != "" {
		cfg.Watch.DefinitionsFile = v
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Watch.ShutdownTimeoutSeconds = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
