package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Lock       LockConfig       `mapstructure:"lock"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig holds attachment storage configuration
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// ExtractionConfig holds the extraction engine settings.
// An empty APIKey is valid and selects the fallback extractor.
type ExtractionConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	FastModel         string        `mapstructure:"fast_model"`
	ThoroughModel     string        `mapstructure:"thorough_model"`
	Temperature       float32       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Debug             bool          `mapstructure:"debug"`
	DebugLogPath      string        `mapstructure:"debug_log_path"`
	MaxRawBytes       int           `mapstructure:"max_raw_bytes"`
	MaxImageDimension int           `mapstructure:"max_image_dimension"`
	PromptsPath       string        `mapstructure:"prompts_path"`
}

// LockConfig selects the per-invoice lock backend
type LockConfig struct {
	Backend   string        `mapstructure:"backend"` // local or redis
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Load reads configuration from configPath (optional), a .env file in the
// working directory (optional) and the environment, in increasing priority.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Extraction.Provider = strings.ToLower(strings.TrimSpace(cfg.Extraction.Provider))
	cfg.Lock.Backend = strings.ToLower(strings.TrimSpace(cfg.Lock.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	// SQLite serializes writers; one connection avoids SQLITE_BUSY under load
	v.SetDefault("database.path", "data/purchases.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	v.SetDefault("storage.base_dir", "data/attachments")

	v.SetDefault("extraction.provider", "openai")
	v.SetDefault("extraction.api_key", "")
	v.SetDefault("extraction.base_url", "")
	v.SetDefault("extraction.fast_model", "gpt-4o-mini")
	v.SetDefault("extraction.thorough_model", "gpt-4o")
	v.SetDefault("extraction.temperature", 0.1)
	v.SetDefault("extraction.max_tokens", 4096)
	v.SetDefault("extraction.timeout", 90*time.Second)
	v.SetDefault("extraction.debug", false)
	v.SetDefault("extraction.debug_log_path", "logs/extraction-audit.jsonl")
	v.SetDefault("extraction.max_raw_bytes", 64*1024)
	v.SetDefault("extraction.max_image_dimension", 2048)
	v.SetDefault("extraction.prompts_path", "")

	v.SetDefault("lock.backend", LockBackendLocal)
	v.SetDefault("lock.redis_addr", "")
	v.SetDefault("lock.ttl", 30*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("extraction.provider", "EXTRACTION_PROVIDER")
	_ = v.BindEnv("extraction.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("extraction.fast_model", "EXTRACTION_FAST_MODEL")
	_ = v.BindEnv("extraction.thorough_model", "EXTRACTION_THOROUGH_MODEL")
	_ = v.BindEnv("extraction.debug", "EXTRACTION_DEBUG")
	_ = v.BindEnv("lock.redis_addr", "REDIS_ADDRESS")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	if c.Extraction.Provider == "" {
		return fmt.Errorf("extraction.provider is required")
	}
	if c.Extraction.FastModel == "" || c.Extraction.ThoroughModel == "" {
		return fmt.Errorf("extraction.fast_model and extraction.thorough_model are required")
	}
	if c.Extraction.MaxRawBytes < 0 {
		return fmt.Errorf("extraction.max_raw_bytes must not be negative")
	}
	if c.Extraction.Debug && c.Extraction.DebugLogPath == "" {
		return fmt.Errorf("extraction.debug_log_path is required when extraction.debug is set")
	}

	switch c.Lock.Backend {
	case LockBackendLocal:
	case LockBackendRedis:
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("lock.redis_addr is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("unknown lock.backend %q", c.Lock.Backend)
	}

	return nil
}
