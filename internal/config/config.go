// Package config loads runtime configuration from yaml files and the
// environment.
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration for the sync core.
type Config struct {
	Env      string  `yaml:"env" env:"GANAPP_ENV" env-default:"local"`
	LogLevel string  `yaml:"log_level" env:"GANAPP_LOG_LEVEL" env-default:"info"`
	DB       DB      `yaml:"db"`
	Network  Network `yaml:"network"`
	Sync     Sync    `yaml:"sync"`
	Remote   Remote  `yaml:"remote"`
	Desktop  Desktop `yaml:"desktop"`
}

// DB configures the local SQLite cache.
type DB struct {
	DataDir     string        `yaml:"data_dir" env:"GANAPP_DATA_DIR" env-default:"./data"`
	File        string        `yaml:"file" env:"GANAPP_DB_FILE" env-default:"ganapp.db"`
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"GANAPP_DB_BUSY_TIMEOUT" env-default:"5s"`
}

// Network configures connectivity monitoring.
type Network struct {
	ProbeAddrs   []string      `yaml:"probe_addrs" env:"GANAPP_PROBE_ADDRS" env-separator:"," env-default:"1.1.1.1:443,8.8.8.8:53"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" env:"GANAPP_PROBE_TIMEOUT" env-default:"3s"`
	PollInterval time.Duration `yaml:"poll_interval" env:"GANAPP_POLL_INTERVAL" env-default:"15s"`
	Debounce     time.Duration `yaml:"debounce" env:"GANAPP_DEBOUNCE" env-default:"2s"`
}

// Sync configures queue retry and drain behavior.
type Sync struct {
	MaxAttempts   int           `yaml:"max_attempts" env:"GANAPP_MAX_ATTEMPTS" env-default:"5"`
	BackoffBase   time.Duration `yaml:"backoff_base" env:"GANAPP_BACKOFF_BASE" env-default:"30s"`
	BackoffCap    time.Duration `yaml:"backoff_cap" env:"GANAPP_BACKOFF_CAP" env-default:"5m"`
	DrainInterval time.Duration `yaml:"drain_interval" env:"GANAPP_DRAIN_INTERVAL" env-default:"1m"`
}

// Remote configures the backend API connection.
type Remote struct {
	BaseURL string        `yaml:"base_url" env:"GANAPP_API_URL" env-default:"http://127.0.0.1:9000"`
	APIKey  string        `yaml:"api_key" env:"GANAPP_API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"GANAPP_API_TIMEOUT" env-default:"30s"`
}

// Desktop configures the desktop bridge process.
type Desktop struct {
	HTTPAddr string `yaml:"http_addr" env:"GANAPP_HTTP_ADDR" env-default:"127.0.0.1:8787"`
}

// DBPath joins the data directory and database file name.
func (c *Config) DBPath() string {
	return c.DB.DataDir + string(os.PathSeparator) + c.DB.File
}

// Load reads configuration from path, falling back to environment
// variables and tag defaults when the file does not exist.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, err
			}
			return &cfg, nil
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad loads configuration from CONFIG_PATH and exits on error.
func MustLoad() *Config {
	path := os.Getenv("CONFIG_PATH")

	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("error reading config: %v", err)
	}
	return cfg
}
