package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultServerAddress   = ":8090"
	DefaultProviderTimeout = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	BotLogMemory = "memory"
	BotLogRedis  = "redis"
)

// DefaultProviderOrder lists providers most capable first.
var DefaultProviderOrder = []string{"openai", "claude", "gemini", "groq"}

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig   BasicConfig               `json:"basic_config"`
	Databases     map[string]DatabaseConfig `json:"databases"`
	Redis         RedisConfig               `json:"redis"`
	Providers     map[string]ProviderConfig `json:"providers"`
	ProviderOrder []string                  `json:"provider_order"`
	Sentry        SentryConfig              `json:"sentry"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress          string `json:"server_address"`
	LogLevel               string `json:"log_level"`
	ProviderTimeoutSeconds int    `json:"provider_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
	BotLogBackend          string `json:"bot_log_backend"`
	MessagePollSeconds     int    `json:"message_poll_seconds"`
	SessionPollSeconds     int    `json:"session_poll_seconds"`
	SeedFile               string `json:"seed_file"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type SentryConfig struct {
	DSN         string  `json:"dsn"`
	Environment string  `json:"environment"`
	SampleRate  float64 `json:"sample_rate"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A .env file in the working directory is applied first; environment variables win over file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// seed_file is relative to the config file; SEED_FILE is taken as given
	if seed := cfg.BasicConfig.SeedFile; seed != "" && !filepath.IsAbs(seed) {
		cfg.BasicConfig.SeedFile = filepath.Join(filepath.Dir(absPath), seed)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if sqliteCfg, ok := cfg.Databases["sqlite3"]; ok && sqliteCfg.DSN != "" && sqliteCfg.DSN != ":memory:" &&
		!strings.HasPrefix(sqliteCfg.DSN, "file:") && !filepath.IsAbs(sqliteCfg.DSN) {
		sqliteCfg.DSN = filepath.Join(filepath.Dir(absPath), sqliteCfg.DSN)
		cfg.Databases["sqlite3"] = sqliteCfg
	}

	return &cfg, nil
}

// DatabaseDriver returns the configured driver name, honouring LIBCHAT_DB.
func DatabaseDriver() string {
	switch driver := strings.ToLower(strings.TrimSpace(os.Getenv("LIBCHAT_DB"))); driver {
	case "", "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return driver
	}
}

// ProviderTimeout bounds a single language-model call.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.BasicConfig.ProviderTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.BasicConfig.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		c.BasicConfig.ServerAddress = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.BasicConfig.LogLevel = v
	}
	if v := os.Getenv("BOT_LOG_BACKEND"); v != "" {
		c.BasicConfig.BotLogBackend = v
	}
	if v := os.Getenv("SEED_FILE"); v != "" {
		c.BasicConfig.SeedFile = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		c.Sentry.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		if host, portStr, err := net.SplitHostPort(v); err == nil {
			c.Redis.Host = host
			if port, err := strconv.Atoi(portStr); err == nil {
				c.Redis.Port = port
			}
			c.Redis.Enabled = true
		}
	}

	keys := map[string]string{
		"openai": "OPENAI_API_KEY",
		"claude": "ANTHROPIC_API_KEY",
		"gemini": "GEMINI_API_KEY",
		"groq":   "GROQ_API_KEY",
	}
	for provider, env := range keys {
		key := os.Getenv(env)
		if key == "" {
			continue
		}
		if c.Providers == nil {
			c.Providers = make(map[string]ProviderConfig)
		}
		prov := c.Providers[provider]
		prov.APIKey = key
		c.Providers[provider] = prov
	}
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.BasicConfig.LogLevel == "" {
		c.BasicConfig.LogLevel = "info"
	}
	if c.BasicConfig.ProviderTimeoutSeconds <= 0 {
		c.BasicConfig.ProviderTimeoutSeconds = int(DefaultProviderTimeout / time.Second)
	}
	if c.BasicConfig.ShutdownTimeoutSeconds <= 0 {
		c.BasicConfig.ShutdownTimeoutSeconds = int(DefaultShutdownTimeout / time.Second)
	}
	switch strings.ToLower(c.BasicConfig.BotLogBackend) {
	case BotLogRedis:
		c.BasicConfig.BotLogBackend = BotLogRedis
	default:
		c.BasicConfig.BotLogBackend = BotLogMemory
	}
	if c.BasicConfig.MessagePollSeconds <= 0 {
		c.BasicConfig.MessagePollSeconds = 3
	}
	if c.BasicConfig.SessionPollSeconds <= 0 {
		c.BasicConfig.SessionPollSeconds = 5
	}
	if len(c.ProviderOrder) == 0 {
		c.ProviderOrder = append([]string(nil), DefaultProviderOrder...)
	}
}
