// Package config reads process settings from the environment, an optional
// .env file and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	FeedPostgres = "postgres"
	FeedNATS     = "nats"
)

type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

type Config struct {
	HTTPAddr      string
	Store         string
	Postgres      Postgres
	FeedSource    string
	NATSURL       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	IdentityTTL   time.Duration
	SessionSecret string
	SecureCookies bool
	PublicBaseURL string
	CORSOrigins   []string
	DecksFile     string
	LogLevel      string
	LogFormat     string
}

// LoadEnv reads .env when present. A missing file is not an error.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load builds the server configuration from the environment and then
// applies the flags found in args.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		Store:         getEnv("STORE", StorePostgres),
		Postgres:      PostgresFromEnv(),
		FeedSource:    getEnv("FEED_SOURCE", FeedPostgres),
		NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		IdentityTTL:   getEnvAsDuration("IDENTITY_TTL", 0),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SecureCookies: getEnvAsBool("SECURE_COOKIES", false),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
		DecksFile:     os.Getenv("DECKS_FILE"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
	}

	fs := flag.NewFlagSet("pokeplan", flag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Storage backend (postgres|memory)")
	fs.StringVar(&cfg.FeedSource, "feed", cfg.FeedSource, "Change feed source (postgres|nats)")
	fs.StringVar(&cfg.Postgres.Host, "db-host", cfg.Postgres.Host, "Database host")
	fs.StringVar(&cfg.Postgres.Port, "db-port", cfg.Postgres.Port, "Database port")
	fs.StringVar(&cfg.Postgres.User, "db-user", cfg.Postgres.User, "Database user")
	fs.StringVar(&cfg.Postgres.Password, "db-pass", cfg.Postgres.Password, "Database password")
	fs.StringVar(&cfg.Postgres.Database, "db-name", cfg.Postgres.Database, "Database name")
	fs.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS server URL")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for identities, empty keeps them in memory")
	fs.DurationVar(&cfg.IdentityTTL, "identity-ttl", cfg.IdentityTTL, "How long a stored identity lives, 0 for forever")
	fs.StringVar(&cfg.DecksFile, "decks", cfg.DecksFile, "YAML deck catalogue")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (console|json)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.FeedSource {
	case FeedPostgres, FeedNATS:
	default:
		return fmt.Errorf("unknown feed source %q", c.FeedSource)
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.IdentityTTL < 0 {
		return errors.New("identity ttl cannot be negative")
	}
	return nil
}

// PostgresFromEnv reads the POSTGRES_* variables used by every binary.
func PostgresFromEnv() Postgres {
	return Postgres{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnv("POSTGRES_PORT", "5432"),
		User:     getEnv("POSTGRES_USER", "postgres"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: getEnv("POSTGRES_DB", "pokeplan"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
