package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case "development", "production":
		// valid
	default:
		errs = append(errs, fmt.Errorf("environment must be \"development\" or \"production\", got %q", c.Environment))
	}

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is required"))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	// token.secret or token.secret_file is required; tokens cannot be
	// verified without one.
	if c.Token.Secret == "" && c.Token.SecretFile == "" {
		errs = append(errs, fmt.Errorf("token.secret or token.secret_file is required"))
	}
	if c.Token.TTL <= 0 {
		errs = append(errs, fmt.Errorf("token.ttl must be > 0, got %s", c.Token.TTL))
	}

	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	switch c.RateLimit.Store {
	case "memory", "redis":
		// valid
	default:
		errs = append(errs, fmt.Errorf("ratelimit.store must be \"memory\" or \"redis\", got %q", c.RateLimit.Store))
	}
	if c.RateLimit.Store == "redis" && c.RateLimit.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("ratelimit.redis.addr is required when ratelimit.store is \"redis\""))
	}

	for i, w := range c.RateLimit.Windows {
		if w.Interval <= 0 {
			errs = append(errs, fmt.Errorf("ratelimit.windows[%d].interval must be > 0", i))
		}
		if w.Limit <= 0 {
			errs = append(errs, fmt.Errorf("ratelimit.windows[%d].limit must be > 0", i))
		}
	}

	return errors.Join(errs...)
}
