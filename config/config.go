// Package config loads runtime settings from the environment (and an optional
// .env file) using kelseyhightower/envconfig. Variables carry the APP_ prefix,
// e.g. APP_DATABASE_URL, APP_VELOCITY_MAX_EVENTS.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Log          LogConfig
	Gamification GamificationConfig
	Store        StoreConfig
	Scheduler    SchedulerConfig
	RateLimit    RateLimitConfig
}

type ServerConfig struct {
	Port           int    `envconfig:"PORT" default:"5200"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	// ServiceToken is the bearer token the gateway presents on every request.
	ServiceToken string `envconfig:"SERVICE_TOKEN"`
	BodyLimit    int    `envconfig:"BODY_LIMIT" default:"1048576"`
	// TrustedProxies lists the gateway addresses whose X-Forwarded-For is
	// believed. Requests from anywhere else are keyed by their socket address.
	TrustedProxies string `envconfig:"TRUSTED_PROXIES" default:"127.0.0.1"`
}

type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

type GamificationConfig struct {
	VelocityMaxEvents int           `envconfig:"VELOCITY_MAX_EVENTS" default:"30"`
	VelocityWindow    time.Duration `envconfig:"VELOCITY_WINDOW" default:"10m"`
	DedupTTL          time.Duration `envconfig:"DEDUP_TTL" default:"1h"`
	LeaderboardLimit  int           `envconfig:"LEADERBOARD_LIMIT" default:"100"`
}

// StoreConfig selects the backend for dedup keys and velocity counters.
// "memory" keeps them per process; "redis" shares them across instances.
type StoreConfig struct {
	Backend       string `envconfig:"STORE_BACKEND" default:"memory"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
}

type RateLimitConfig struct {
	RPS       float64       `envconfig:"HTTP_RPS" default:"5"`
	Burst     int           `envconfig:"HTTP_BURST" default:"30"`
	ClientTTL time.Duration `envconfig:"HTTP_CLIENT_TTL" default:"3m"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	var cfg Config
	if err := cfg.process(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// process fills each section under the flat APP_ prefix. Passing the whole
// Config would nest keys as APP_SERVER_PORT.
func (c *Config) process() error {
	sections := []interface{}{&c.Server, &c.Database, &c.Log, &c.Gamification, &c.Store, &c.Scheduler, &c.RateLimit}
	for _, section := range sections {
		if err := envconfig.Process("APP", section); err != nil {
			return fmt.Errorf("failed to process env config: %w", err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("APP_DATABASE_URL is required")
	}
	if c.Server.ServiceToken == "" {
		return fmt.Errorf("APP_SERVICE_TOKEN is required")
	}
	if c.Gamification.VelocityMaxEvents <= 0 || c.Gamification.VelocityWindow <= 0 {
		return fmt.Errorf("velocity limit must be positive (got %d per %s)",
			c.Gamification.VelocityMaxEvents, c.Gamification.VelocityWindow)
	}
	if c.Gamification.DedupTTL <= 0 {
		return fmt.Errorf("APP_DEDUP_TTL must be positive")
	}
	if c.Gamification.LeaderboardLimit <= 0 || c.Gamification.LeaderboardLimit > 100 {
		return fmt.Errorf("APP_LEADERBOARD_LIMIT must be between 1 and 100 (got %d)", c.Gamification.LeaderboardLimit)
	}
	if c.Scheduler.ReconcileInterval <= 0 {
		return fmt.Errorf("APP_RECONCILE_INTERVAL must be positive")
	}
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS and trims each entry.
func (s ServerConfig) Origins() []string {
	return splitList(s.AllowedOrigins)
}

func splitList(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (s ServerConfig) Proxies() []string {
	return splitList(s.TrustedProxies)
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}
