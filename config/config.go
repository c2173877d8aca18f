package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Timezone    string `env:"APP_TIMEZONE" envDefault:"Local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Database DatabaseConfig
	AI       AIConfig
	JWT      JWTConfig
	Session  SessionConfig
	Chat     ChatConfig
	Security SecurityConfig
}

type DatabaseConfig struct {
	Type     string `env:"DB_TYPE" envDefault:"memory"` // "mongodb" or "memory"
	URI      string `env:"DATABASE_URL"`
	Name     string `env:"DB_NAME" envDefault:"medicose"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"27017"`
	Username string `env:"DB_USERNAME"`
	Password string `env:"DB_PASSWORD"`

	// Connection pool settings
	MaxConnections int           `env:"DB_MAX_CONNECTIONS" envDefault:"100"`
	MinConnections int           `env:"DB_MIN_CONNECTIONS" envDefault:"10"`
	MaxIdleTime    time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"30m"`
}

type AIConfig struct {
	Provider  string        `env:"AI_PROVIDER" envDefault:"gemini"` // "gemini", "openai" or "none"
	APIKey    string        `env:"AI_API_KEY"`
	GeminiKey string        `env:"GOOGLE_API_KEY"`
	Model     string        `env:"AI_MODEL"`
	MaxTokens int           `env:"AI_MAX_TOKENS" envDefault:"500"`
	Timeout   time.Duration `env:"AI_TIMEOUT" envDefault:"12s"`
}

type JWTConfig struct {
	Secret string `env:"JWT_SECRET"`
}

type SessionConfig struct {
	Store         string        `env:"SESSION_STORE" envDefault:"memory"` // "memory" or "redis"
	CacheSize     int           `env:"SESSION_CACHE_SIZE" envDefault:"10000"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL           time.Duration `env:"SESSION_TTL" envDefault:"0s"`
}

type ChatConfig struct {
	MaxInputChars    int           `env:"MAX_INPUT_CHARS" envDefault:"300"`
	AnalyticsTimeout time.Duration `env:"ANALYTICS_TIMEOUT" envDefault:"2s"`
}

type SecurityConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
}

var cfg *Config

// Load initializes the configuration
func Load() error {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	loaded, err := parse()
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func parse() (*Config, error) {
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if c.AI.APIKey == "" && c.AI.Provider == "gemini" {
		c.AI.APIKey = c.AI.GeminiKey
	}
	if c.AI.Model == "" {
		c.AI.Model = defaultModel(c.AI.Provider)
	}

	// Validate configuration
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return c, nil
}

// Get returns the loaded configuration
func Get() *Config {
	if cfg == nil {
		log.Fatal().Msg("Configuration not loaded. Call Load() first")
	}
	return cfg
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-3.5-turbo"
	case "gemini":
		return "gemini-1.5-flash"
	default:
		return ""
	}
}

func (c *Config) validate() error {
	switch c.Database.Type {
	case "mongodb":
		if c.Database.URI == "" && (c.Database.Host == "" || c.Database.Port == "") {
			return fmt.Errorf("database URI or host/port must be provided")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.Database.Type)
	}

	switch c.AI.Provider {
	case "gemini", "openai", "none":
	default:
		return fmt.Errorf("unsupported AI_PROVIDER %q", c.AI.Provider)
	}

	switch c.Session.Store {
	case "memory":
		if c.Session.CacheSize <= 0 {
			return fmt.Errorf("SESSION_CACHE_SIZE must be positive")
		}
	case "redis":
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis session store")
		}
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.Session.Store)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.Chat.MaxInputChars <= 0 {
		return fmt.Errorf("MAX_INPUT_CHARS must be positive")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	return nil
}

// Location resolves APP_TIMEZONE for parsing appointment times.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// AIEnabled reports whether a completion provider is configured.
func (c *Config) AIEnabled() bool {
	return c.AI.Provider != "none" && c.AI.APIKey != ""
}

// BuildDatabaseURI constructs the database URI if not provided
func (c *Config) BuildDatabaseURI() string {
	if c.Database.URI != "" {
		return c.Database.URI
	}

	if c.Database.Type != "mongodb" {
		return ""
	}
	if c.Database.Username != "" && c.Database.Password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s",
			c.Database.Username,
			c.Database.Password,
			c.Database.Host,
			c.Database.Port,
			c.Database.Name,
		)
	}
	return fmt.Sprintf("mongodb://%s:%s/%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}
