package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	Env     string
	APIPort string

	// Empty DatabaseURL selects the in-memory stores.
	DatabaseURL   string
	RunMigrations bool

	ActionTimeout     time.Duration
	ExecutionLogLimit int

	AllowedOrigins []string
	// Empty JWTSecret leaves the API unauthenticated.
	JWTSecret string

	SnapshotFile     string
	SnapshotInterval time.Duration
	RedisURL         string
	RedisKeyPrefix   string

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string

	DueDateScanInterval time.Duration
	DueDateWindow       time.Duration
	ScheduleCron        string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Unparseable values are errors.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Env:                 p.str("ENV", "development"),
		APIPort:             p.str("API_PORT", "8080"),
		DatabaseURL:         p.str("DATABASE_URL", ""),
		RunMigrations:       p.boolean("RUN_MIGRATIONS", true),
		ActionTimeout:       p.duration("ACTION_TIMEOUT", 5*time.Second),
		ExecutionLogLimit:   p.integer("EXECUTION_LOG_LIMIT", 100),
		AllowedOrigins:      p.list("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		JWTSecret:           p.str("JWT_SECRET_KEY", ""),
		SnapshotFile:        p.str("SNAPSHOT_FILE", ""),
		SnapshotInterval:    p.duration("SNAPSHOT_INTERVAL", time.Minute),
		RedisURL:            p.str("REDIS_URL", ""),
		RedisKeyPrefix:      p.str("REDIS_KEY_PREFIX", "automation"),
		MQTTBrokerURL:       p.str("MQTT_BROKER_URL", ""),
		MQTTClientID:        p.str("MQTT_CLIENT_ID", "task-automator"),
		MQTTTopicPrefix:     p.str("MQTT_TOPIC_PREFIX", "automation"),
		GoogleClientID:      p.str("GOOGLE_OAUTH_CLIENT_ID", ""),
		GoogleClientSecret:  p.str("GOOGLE_OAUTH_CLIENT_SECRET", ""),
		GoogleRefreshToken:  p.str("GOOGLE_CALENDAR_REFRESH_TOKEN", ""),
		DueDateScanInterval: p.duration("DUE_DATE_SCAN_INTERVAL", time.Minute),
		DueDateWindow:       p.duration("DUE_DATE_WINDOW", 24*time.Hour),
		ScheduleCron:        p.str("SCHEDULE_CRON", ""),
	}
	if p.err != nil {
		return nil, p.err
	}

	if cfg.ActionTimeout <= 0 {
		return nil, fmt.Errorf("ACTION_TIMEOUT must be positive, got %s", cfg.ActionTimeout)
	}
	if cfg.ExecutionLogLimit <= 0 {
		return nil, fmt.Errorf("EXECUTION_LOG_LIMIT must be positive, got %d", cfg.ExecutionLogLimit)
	}
	return cfg, nil
}

// UsesPostgres reports whether rules and executions live in Postgres.
func (c *Config) UsesPostgres() bool { return c.DatabaseURL != "" }

// CalendarEnabled reports whether the create_event handler can be wired.
func (c *Config) CalendarEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRefreshToken != ""
}

// parser keeps the first error so FromEnv can read every field in one pass.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) raw(key string) (string, bool) {
	v := strings.TrimSpace(p.getenv(key))
	return v, v != ""
}

func (p *parser) str(key, def string) string {
	if v, ok := p.raw(key); ok {
		return v
	}
	return def
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) list(key string, def []string) []string {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
