// Package postgres provides a PostgreSQL implementation of
// credential.PrincipalStore. It uses pgx/v5 for connection pooling and
// maps driver constraint violations onto store.ConstraintError so the
// error classifier can translate them without knowing the driver.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apprendo/apprendo/pkg/credential"
	"github.com/apprendo/apprendo/pkg/principal"
	"github.com/apprendo/apprendo/pkg/store"
)

// Pool sizing defaults. The gateway is read-heavy: every token
// validation resolves its principal from the store, so the pool leans
// larger than writes alone would need.
const (
	defaultMaxConns        = 25
	defaultMinConns        = 5
	defaultMaxConnLifetime = 5 * time.Minute
)

// Config controls the principal store's connection pool and startup
// behavior.
type Config struct {
	// DSN is the connection string for the principals database.
	DSN string

	// MaxConns and MinConns bound the pgx pool. Zero or negative
	// values fall back to the package defaults.
	MaxConns int32
	MinConns int32

	// MaxConnLifetime recycles connections older than this.
	MaxConnLifetime time.Duration

	// MigrateOnStart brings the principals schema up to date during
	// New. Deployments that manage schema out of band leave it false.
	MigrateOnStart bool
}

func (c *Config) normalize() {
	if c.MaxConns <= 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.MinConns <= 0 {
		c.MinConns = defaultMinConns
	}
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = defaultMaxConnLifetime
	}
}

// Store is a PostgreSQL-backed PrincipalStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements credential.PrincipalStore at compile time.
var _ credential.PrincipalStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.normalize()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const principalColumns = `id, email, password_hash, first_name, last_name, role, is_active, email_verified, created_at, updated_at`

// FindByEmail retrieves a principal by email, case-insensitively.
func (s *Store) FindByEmail(ctx context.Context, email string) (*principal.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		WHERE lower(email) = lower($1)
	`, email)
	return scanPrincipal(row)
}

// FindByID retrieves a principal by ID.
func (s *Store) FindByID(ctx context.Context, id string) (*principal.Principal, error) {
	if _, err := uuid.Parse(id); err != nil {
		// Not a UUID, so it cannot match; avoids a driver type error.
		return nil, store.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		WHERE id = $1
	`, id)
	return scanPrincipal(row)
}

// Insert persists a new principal, assigning its ID and timestamps.
func (s *Store) Insert(ctx context.Context, p *principal.Principal) error {
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO principals (
			id, email, password_hash, first_name, last_name,
			role, is_active, email_verified, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		p.ID, p.Email, p.PasswordHash, p.FirstName, p.LastName,
		string(p.Role), p.Active, p.EmailVerified, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return translateError("inserting principal", err)
	}
	return nil
}

// Update replaces the stored record and stamps updated_at.
func (s *Store) Update(ctx context.Context, p *principal.Principal) error {
	p.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		UPDATE principals SET
			email = $2, password_hash = $3, first_name = $4, last_name = $5,
			role = $6, is_active = $7, email_verified = $8, updated_at = $9
		WHERE id = $1
	`,
		p.ID, p.Email, p.PasswordHash, p.FirstName, p.LastName,
		string(p.Role), p.Active, p.EmailVerified, p.UpdatedAt,
	)
	if err != nil {
		return translateError("updating principal", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes a principal by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM principals WHERE id = $1`, id)
	if err != nil {
		return translateError("deleting principal", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List returns all principals projected to the public field set, newest
// first. Password hashes are never selected.
func (s *Store) List(ctx context.Context) ([]principal.Public, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, first_name, last_name, role, is_active, email_verified, created_at, updated_at
		FROM principals
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing principals: %w", err)
	}
	defer rows.Close()

	var out []principal.Public
	for rows.Next() {
		var p principal.Public
		var role string
		if err := rows.Scan(
			&p.ID, &p.Email, &p.FirstName, &p.LastName, &role,
			&p.Active, &p.EmailVerified, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning principal: %w", err)
		}
		p.Role = principal.Role(role)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing principals: %w", err)
	}
	return out, nil
}

func scanPrincipal(row pgx.Row) (*principal.Principal, error) {
	var p principal.Principal
	var role string
	err := row.Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.FirstName, &p.LastName,
		&role, &p.Active, &p.EmailVerified, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning principal: %w", err)
	}
	p.Role = principal.Role(role)
	return &p, nil
}

// translateError maps driver errors onto the store's portable error
// types. Unique violations on the email index become ErrDuplicateEmail;
// other constraint violations keep their code for the error classifier.
func translateError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == store.CodeUniqueViolation && pgErr.ConstraintName == "principals_email_key" {
			return store.ErrDuplicateEmail
		}
		return &store.ConstraintError{
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Err:        err,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
