package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the Apex platform.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Loop      LoopConfig      `mapstructure:"loop"`
	News      NewsConfig      `mapstructure:"news"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Domain   string `mapstructure:"domain"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LLMConfig configures the generative backend.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// MaxToolIterations bounds the agentic tool-use loop per turn.
	MaxToolIterations int `mapstructure:"max_tool_iterations"`
}

// StorageConfig contains database configurations
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RedisConfig contains Redis settings (scheduler locks, stats cache)
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoopConfig configures the autonomous debate loop.
type LoopConfig struct {
	AutoStart       bool          `mapstructure:"auto_start"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
	DebateSize      int           `mapstructure:"debate_size"`
	NewsProbability float64       `mapstructure:"news_probability"`
	InterAgentPause time.Duration `mapstructure:"inter_agent_pause"`
	ScanEvery       int           `mapstructure:"scan_every"`
	ValidateBatch   int           `mapstructure:"validate_batch"`
}

// NewsConfig configures news ingestion.
type NewsConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxChars     int           `mapstructure:"max_chars"`
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

// LoadConfig loads configuration from file and environment variables.
// Passing an empty path searches ./config and . for apex_config.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("apex_config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("APEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional - defaults plus env cover the common case
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.domain", "f1")

	viper.SetDefault("server.address", ":8090")
	viper.SetDefault("server.cors_origins", []string{"*"})

	viper.SetDefault("llm.base_url", "https://api.anthropic.com/v1/messages")
	viper.SetDefault("llm.model", "claude-sonnet-4-20250514")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.temperature", 1.0)
	viper.SetDefault("llm.timeout", "2m")
	viper.SetDefault("llm.max_tool_iterations", 6)

	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.postgres.timeout", "5s")
	viper.SetDefault("storage.redis.host", "")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.db", 0)

	viper.SetDefault("loop.auto_start", true)
	viper.SetDefault("loop.cooldown", "20s")
	viper.SetDefault("loop.debate_size", 3)
	viper.SetDefault("loop.news_probability", 0.35)
	viper.SetDefault("loop.inter_agent_pause", "500ms")
	viper.SetDefault("loop.scan_every", 4)
	viper.SetDefault("loop.validate_batch", 3)

	viper.SetDefault("news.fetch_timeout", "20s")
	viper.SetDefault("news.max_chars", 6000)

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.cost_tracking", true)
}

// overrideFromEnv overrides configuration with well-known environment variables
func overrideFromEnv() {
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		viper.Set("llm.api_key", apiKey)
	}
	if secret := os.Getenv("APEX_JWT_SECRET"); secret != "" {
		viper.Set("server.jwt_secret", secret)
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		viper.Set("storage.postgres.url", url)
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		viper.Set("storage.postgres.host", host)
	}
	if port := os.Getenv("POSTGRES_PORT"); port != "" {
		viper.Set("storage.postgres.port", port)
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		viper.Set("storage.postgres.user", user)
	}
	if pass := os.Getenv("POSTGRES_PASSWORD"); pass != "" {
		viper.Set("storage.postgres.password", pass)
	}
	if db := os.Getenv("POSTGRES_DB"); db != "" {
		viper.Set("storage.postgres.dbname", db)
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("storage.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		viper.Set("storage.redis.port", port)
	}
}

func validateConfig(config *Config) error {
	if config.Loop.DebateSize < 1 {
		return fmt.Errorf("loop.debate_size must be at least 1")
	}
	if config.Loop.NewsProbability < 0 || config.Loop.NewsProbability > 1 {
		return fmt.Errorf("loop.news_probability must be within [0,1]")
	}
	if config.LLM.MaxToolIterations < 1 {
		return fmt.Errorf("llm.max_tool_iterations must be at least 1")
	}
	return nil
}

// PostgresDSN builds a lib/pq DSN from the storage section.
func (c *Config) PostgresDSN() (string, error) {
	pg := c.Storage.Postgres
	if pg.URL != "" {
		return pg.URL, nil
	}
	if pg.Host == "" || pg.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := pg.Port
	if port == "" {
		port = "5432"
	}
	ssl := pg.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", pg.User, pg.Password, pg.Host, port, pg.DBName, ssl), nil
}
