package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "RISKFEED_"

// Config holds the runtime settings of a riskfeed server
type Config struct {
	// Storage
	DataDir  string `yaml:"data_dir"`
	DBFile   string `yaml:"db_file"`
	SeedFile string `yaml:"seed_file"`

	// HTTP
	APIAddr string `yaml:"api_addr"`

	// Feed
	Interval time.Duration `yaml:"interval"`
	Seed     uint64        `yaml:"seed"` // 0 selects a time-based seed

	// Push delivery
	StreamBuffer    int           `yaml:"stream_buffer"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	StreamRateLimit float64       `yaml:"stream_rate_limit"` // new stream connections per second per client
	StreamBurst     int           `yaml:"stream_burst"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		DataDir:         "./data",
		DBFile:          "riskfeed.db",
		APIAddr:         "127.0.0.1:4000",
		Interval:        8 * time.Second,
		StreamBuffer:    16,
		WriteTimeout:    5 * time.Second,
		StreamRateLimit: 2,
		StreamBurst:     5,
		LogLevel:        "info",
	}
}

// Load builds a Config from defaults, an optional YAML file and the environment.
// A .env file in the working directory is read first if it exists; variables
// already present in the environment win over it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadDotEnv loads the given env files, skipping any that do not exist
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv(envPrefix+"DATA_DIR", c.DataDir)
	c.DBFile = getEnv(envPrefix+"DB_FILE", c.DBFile)
	c.SeedFile = getEnv(envPrefix+"SEED_FILE", c.SeedFile)

	// PORT is honoured for platforms that assign the listen port
	if port := os.Getenv("PORT"); port != "" {
		c.APIAddr = ":" + port
	}
	c.APIAddr = getEnv(envPrefix+"API_ADDR", c.APIAddr)

	c.Interval = getEnvAsDuration(envPrefix+"INTERVAL", c.Interval)
	c.Seed = getEnvAsUint(envPrefix+"SEED", c.Seed)
	c.StreamBuffer = getEnvAsInt(envPrefix+"STREAM_BUFFER", c.StreamBuffer)
	c.WriteTimeout = getEnvAsDuration(envPrefix+"WRITE_TIMEOUT", c.WriteTimeout)
	c.StreamRateLimit = getEnvAsFloat(envPrefix+"STREAM_RATE_LIMIT", c.StreamRateLimit)
	c.StreamBurst = getEnvAsInt(envPrefix+"STREAM_BURST", c.StreamBurst)
	c.LogLevel = getEnv(envPrefix+"LOG_LEVEL", c.LogLevel)
	c.LogJSON = getEnvAsBool(envPrefix+"LOG_JSON", c.LogJSON)
}

// Validate checks that the settings can drive a server
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.DBFile == "" {
		return fmt.Errorf("db file is required")
	}
	if c.APIAddr == "" {
		return fmt.Errorf("api addr is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.StreamBuffer < 2 {
		return fmt.Errorf("stream buffer must hold at least 2 events, got %d", c.StreamBuffer)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %s", c.WriteTimeout)
	}
	if c.StreamRateLimit <= 0 || c.StreamBurst <= 0 {
		return fmt.Errorf("stream rate limit and burst must be positive")
	}
	return nil
}

// DBPath returns the location of the bbolt file
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, c.DBFile)
}

// SeedPath returns the location of the seed file, defaulting to <data dir>/seed.json
func (c *Config) SeedPath() string {
	if c.SeedFile != "" {
		return c.SeedFile
	}
	return filepath.Join(c.DataDir, "seed.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
