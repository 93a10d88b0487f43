// Package config provides unified configuration for the apprendo
// security gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (APPRENDO_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the apprendo gateway.
type Config struct {
	Environment string          `yaml:"environment"` // "development" or "production", default: "development"
	Server      ServerConfig    `yaml:"server"`
	Storage     StorageConfig   `yaml:"storage"`
	Token       TokenConfig     `yaml:"token"`
	RateLimit   RateLimitConfig `yaml:"ratelimit"`
	Audit       AuditConfig     `yaml:"audit"`
}

// Production reports whether the gateway runs in production mode, which
// masks internal messages on 5xx responses.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`             // default: ":3000"
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// StorageConfig holds principal store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"` // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"` // default: 25
	MinConns       int32  `yaml:"min_conns"` // default: 5
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// TokenConfig holds session token settings.
type TokenConfig struct {
	Secret     string        `yaml:"secret"`
	SecretFile string        `yaml:"secret_file"` // _file variant for secret
	TTL        time.Duration `yaml:"ttl"`         // default: 24h
	Issuer     string        `yaml:"issuer"`      // default: "apprendo"
}

// RateLimitConfig holds throttling settings.
type RateLimitConfig struct {
	Store        string         `yaml:"store"` // "memory" or "redis", default: "memory"
	Redis        RedisConfig    `yaml:"redis"`
	Windows      []WindowConfig `yaml:"windows"`       // empty means the built-in tiers
	BypassPaths  []string       `yaml:"bypass_paths"`  // extra exempt paths
	BenignAgents []string       `yaml:"benign_agents"` // exempt user-agent substrings
}

// RedisConfig holds Redis counter store settings.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"` // _file variant for password
	DB           int    `yaml:"db"`
}

// WindowConfig describes one rate-limit tier.
type WindowConfig struct {
	Name     string        `yaml:"name"`
	Interval time.Duration `yaml:"interval"`
	Limit    int64         `yaml:"limit"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	LogPath string `yaml:"log_path"` // optional JSON-lines audit file
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Addr:            ":3000",
			MaxBodySize:     1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
				MinConns: 5,
			},
		},
		Token: TokenConfig{
			TTL:    24 * time.Hour,
			Issuer: "apprendo",
		},
		RateLimit: RateLimitConfig{
			Store: "memory",
		},
	}
}
