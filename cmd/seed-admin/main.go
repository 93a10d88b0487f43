// Command seed-admin creates an ADMIN principal directly in the store.
//
// Registration through the API never grants the ADMIN role, so the
// first administrator of a deployment is bootstrapped with this tool:
//
//	seed-admin -config config.yaml -email admin@example.com
//
// The password is read from APPRENDO_ADMIN_PASSWORD to keep it out of
// shell history and process listings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/apprendo/apprendo/pkg/config"
	"github.com/apprendo/apprendo/pkg/password"
	"github.com/apprendo/apprendo/pkg/principal"
	"github.com/apprendo/apprendo/pkg/store"
	"github.com/apprendo/apprendo/pkg/store/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	email := flag.String("email", "", "admin email address (required)")
	firstName := flag.String("first-name", "", "admin first name")
	lastName := flag.String("last-name", "", "admin last name")
	flag.Parse()

	if err := run(*configPath, *email, *firstName, *lastName); err != nil {
		slog.Error("seed-admin failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, email, firstName, lastName string) error {
	if email == "" {
		return fmt.Errorf("-email is required")
	}
	plaintext := os.Getenv("APPRENDO_ADMIN_PASSWORD")
	if len(plaintext) < 8 {
		return fmt.Errorf("APPRENDO_ADMIN_PASSWORD must be set and at least 8 characters")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Type != "postgres" {
		return fmt.Errorf("seeding requires storage.type \"postgres\", got %q", cfg.Storage.Type)
	}

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

	hash, err := password.NewBcrypt().Hash(plaintext)
	if err != nil {
		return err
	}

	admin := &principal.Principal{
		Email:         email,
		PasswordHash:  hash,
		FirstName:     firstName,
		LastName:      lastName,
		Role:          principal.RoleAdmin,
		Active:        true,
		EmailVerified: true,
	}
	if err := pg.Insert(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return fmt.Errorf("a principal with email %s already exists", email)
		}
		return err
	}

	slog.Info("admin principal created", "id", admin.ID, "email", admin.Email)
	return nil
}
