// Package credential implements the credential service: registration,
// authentication, session-token validation, and account mutations for
// principals. Each operation fails fast and leaves no partial side
// effect on error.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/apprendo/apprendo/pkg/password"
	"github.com/apprendo/apprendo/pkg/principal"
	"github.com/apprendo/apprendo/pkg/store"
	"github.com/apprendo/apprendo/pkg/token"
)

// Sentinel errors. Unknown email and wrong password intentionally share
// ErrInvalidCredentials so login failures never reveal whether an
// account exists.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrRoleNotAllowed     = errors.New("requested role not allowed at registration")
)

// PrincipalStore is the external user store consumed by the service.
// Implementations live in pkg/store/memory and pkg/store/postgres.
//
// Lookup misses return store.ErrNotFound. Insert enforces email
// uniqueness (store.ErrDuplicateEmail or a store.ConstraintError with
// the engine's uniqueness code). List returns the projected field set
// and never includes password hashes.
type PrincipalStore interface {
	FindByEmail(ctx context.Context, email string) (*principal.Principal, error)
	FindByID(ctx context.Context, id string) (*principal.Principal, error)
	Insert(ctx context.Context, p *principal.Principal) error
	Update(ctx context.Context, p *principal.Principal) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]principal.Public, error)
}

// AuthResult is returned by Register and Login: a signed session token
// plus the public projection of the principal.
type AuthResult struct {
	AccessToken string
	Profile     principal.Public
}

// Service coordinates the password hasher, the token issuer, and the
// external principal store.
type Service struct {
	store  PrincipalStore
	hasher password.Hasher
	tokens *token.Issuer
	logger *slog.Logger
}

// New creates a credential Service.
func New(st PrincipalStore, hasher password.Hasher, tokens *token.Issuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, hasher: hasher, tokens: tokens, logger: logger}
}

// RegisterInput is the validated payload for Register. Format and
// length constraints are enforced upstream by the payload pipeline.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      principal.Role // empty defaults to STUDENT
}

// Register creates a new principal and issues its first session token.
// A principal may self-register as STUDENT or CREATOR; ADMIN is only
// assignable by an administrative mutation outside this pipeline.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	role := in.Role
	if role == "" {
		role = principal.RoleStudent
	}
	if !role.Valid() || role == principal.RoleAdmin {
		return nil, ErrRoleNotAllowed
	}

	// Check first for a friendly conflict; the store's uniqueness
	// constraint still backstops the race between check and insert.
	_, err := s.store.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, store.ErrDuplicateEmail
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("looking up email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	p := &principal.Principal{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		Active:       true,
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("principal registered", "id", p.ID, "role", p.Role)

	return s.authResult(p)
}

// Login authenticates a principal by email and password and issues a
// session token. Unknown email and wrong password yield the same error.
func (s *Service) Login(ctx context.Context, email, plaintext string) (*AuthResult, error) {
	p, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up email: %w", err)
	}

	if !s.hasher.Verify(plaintext, p.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !p.Active {
		return nil, ErrAccountDisabled
	}

	return s.authResult(p)
}

// ValidateToken re-resolves the principal behind validated claims from
// the store rather than trusting the claims alone, so a deactivated or
// deleted account is rejected even with an unexpired, validly signed
// token. Returns (nil, nil) when the token no longer maps to a live
// principal; the caller decides the HTTP outcome.
func (s *Service) ValidateToken(ctx context.Context, claims *token.Claims) (*principal.Principal, error) {
	p, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolving principal: %w", err)
	}
	if !p.Active || p.Email != claims.Email {
		return nil, nil
	}
	return p, nil
}

// UpdateProfileInput carries the optional profile fields a principal
// may change. Nil fields are left untouched.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
}

// UpdateProfile merges the given fields into the principal and persists
// the result.
func (s *Service) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*principal.Principal, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		p.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		p.LastName = *in.LastName
	}

	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ChangePassword verifies the current password and persists a hash of
// the new one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(current, p.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	p.PasswordHash = hash

	if err := s.store.Update(ctx, p); err != nil {
		return err
	}

	s.logger.Info("password changed", "id", p.ID)
	return nil
}

// DeleteAccount removes the principal.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("account deleted", "id", id)
	return nil
}

// ListPrincipals returns all principals projected to the public field
// set. The password hash exclusion is a hard invariant of the store's
// List, re-checked nowhere because the projection type cannot carry it.
func (s *Service) ListPrincipals(ctx context.Context) ([]principal.Public, error) {
	return s.store.List(ctx)
}

func (s *Service) authResult(p *principal.Principal) (*AuthResult, error) {
	signed, err := s.tokens.Issue(p)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &AuthResult{AccessToken: signed, Profile: p.Public()}, nil
}
