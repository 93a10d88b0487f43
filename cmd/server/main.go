// Command server runs the apprendo security gateway.
//
// Configuration comes from a YAML file (-config flag, APPRENDO_CONFIG
// env, ./config.yaml, /etc/apprendo/config.yaml) with APPRENDO_* env
// var overrides. See pkg/config for the full schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apprendo/apprendo/pkg/audit"
	"github.com/apprendo/apprendo/pkg/config"
	"github.com/apprendo/apprendo/pkg/credential"
	"github.com/apprendo/apprendo/pkg/debug"
	"github.com/apprendo/apprendo/pkg/guard"
	"github.com/apprendo/apprendo/pkg/password"
	"github.com/apprendo/apprendo/pkg/payload"
	"github.com/apprendo/apprendo/pkg/ratelimit"
	"github.com/apprendo/apprendo/pkg/store/memory"
	"github.com/apprendo/apprendo/pkg/store/postgres"
	"github.com/apprendo/apprendo/pkg/token"
	"github.com/apprendo/apprendo/pkg/transport"
	transporthttp "github.com/apprendo/apprendo/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	levelStr := os.Getenv("APPRENDO_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "DEBUG"
		if cfg.Production() {
			levelStr = "INFO"
		}
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: debug.ParseLevel(levelStr)}))
	slog.SetDefault(logger)

	// Principal store.
	var principals credential.PrincipalStore
	switch cfg.Storage.Type {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MinConns:       cfg.Storage.Postgres.MinConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		principals = pg
		logger.Info("storage ready", "type", "postgres")
	default:
		principals = memory.New()
		logger.Warn("using in-memory principal store, data is lost on restart")
	}

	// Token issuer and credential service.
	issuer, err := token.New(token.Config{
		Secret: []byte(cfg.Token.Secret),
		TTL:    cfg.Token.TTL,
		Issuer: cfg.Token.Issuer,
	})
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}
	creds := credential.New(principals, password.NewBcrypt(), issuer, logger)

	// Audit trail, optionally mirrored to a JSON-lines file.
	var sinks []audit.Sink
	if cfg.Audit.LogPath != "" {
		f, err := os.OpenFile(cfg.Audit.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer f.Close()
		sinks = append(sinks, audit.NewJSONWriterSink(f))
		logger.Info("audit trail enabled", "path", cfg.Audit.LogPath)
	}
	auditor := audit.New(logger, sinks...)

	classifier := transport.NewClassifier(auditor, cfg.Production(), logger)
	g := guard.New(issuer, creds, classifier.WriteError, logger)
	processor := payload.NewProcessor(payload.NewScreener(nil, logger))

	// Rate limiter counter store.
	var counters ratelimit.CounterStore
	switch cfg.RateLimit.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.Redis.Addr,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
		})
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		counters = ratelimit.NewRedisStore(client, "ratelimit")
		logger.Info("rate limiting ready", "store", "redis", "addr", cfg.RateLimit.Redis.Addr)
	default:
		mem := ratelimit.NewMemoryStore()
		defer mem.Close()
		counters = mem
		logger.Info("rate limiting ready", "store", "memory")
	}

	var windows []ratelimit.Window
	for _, w := range cfg.RateLimit.Windows {
		windows = append(windows, ratelimit.Window{Name: w.Name, Interval: w.Interval, Limit: w.Limit})
	}
	bypass := append([]string{}, ratelimit.DefaultBypassPaths...)
	bypass = append(bypass, cfg.RateLimit.BypassPaths...)
	limiter := ratelimit.NewLimiter(counters, windows, bypass, cfg.RateLimit.BenignAgents, logger)

	adapter := transporthttp.NewAdapter(creds, g, limiter, processor, classifier,
		transporthttp.Config{
			Addr:            cfg.Server.Addr,
			MaxBodySize:     cfg.Server.MaxBodySize,
			ShutdownTimeout: int(cfg.Server.ShutdownTimeout.Seconds()),
		}, logger)

	srv := transporthttp.NewServer(adapter,
		transporthttp.WithAddr(cfg.Server.Addr),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	logger.Info("apprendo gateway starting",
		"addr", cfg.Server.Addr,
		"environment", cfg.Environment,
		"storage", cfg.Storage.Type,
	)
	return srv.ListenAndServe()
}
