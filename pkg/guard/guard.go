// Package guard implements the authentication and authorization
// middleware chain: bearer-token extraction, token validation against
// the credential service, and role-based route protection.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/apprendo/apprendo/pkg/debug"
	"github.com/apprendo/apprendo/pkg/principal"
	"github.com/apprendo/apprendo/pkg/token"
)

// Sentinel errors surfaced to the error classifier. All of them map to
// 401 except ErrForbidden, which maps to 403.
var (
	ErrMissingCredentials = errors.New("authentication required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrForbidden          = errors.New("insufficient permissions")
)

// TokenValidator re-resolves the principal behind validated claims.
// A (nil, nil) return means the token no longer maps to a live
// principal. Implemented by credential.Service.
type TokenValidator interface {
	ValidateToken(ctx context.Context, claims *token.Claims) (*principal.Principal, error)
}

// ErrorWriter renders a rejection to the client. The transport layer
// wires in its error classifier here so guard failures go through the
// same terminal formatting and auditing as handler failures.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Guard builds the middleware protecting authenticated routes.
type Guard struct {
	tokens    *token.Issuer
	validator TokenValidator
	writeErr  ErrorWriter
	logger    *slog.Logger
}

// New creates a Guard. writeErr must not be nil.
func New(tokens *token.Issuer, validator TokenValidator, writeErr ErrorWriter, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{tokens: tokens, validator: validator, writeErr: writeErr, logger: logger}
}

// Authenticate rejects requests without a valid session token and
// injects the resolved principal into the request context for
// downstream handlers and guards.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			debug.Log("guard", "missing bearer token", "path", r.URL.Path)
			g.writeErr(w, r, ErrMissingCredentials)
			return
		}

		claims, err := g.tokens.Parse(raw)
		if err != nil {
			g.logger.Debug("token rejected",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"error", err,
			)
			g.writeErr(w, r, err)
			return
		}

		p, err := g.validator.ValidateToken(r.Context(), claims)
		if err != nil {
			g.writeErr(w, r, err)
			return
		}
		if p == nil {
			// Validly signed token for a deleted, disabled, or renamed
			// account.
			g.logger.Warn("token no longer maps to a live principal",
				"subject", claims.Subject,
				"path", r.URL.Path,
			)
			g.writeErr(w, r, ErrInvalidToken)
			return
		}

		next.ServeHTTP(w, r.WithContext(principal.SetContext(r.Context(), p)))
	})
}

// RequireRoles rejects authenticated requests whose principal holds
// none of the given roles. It must run after Authenticate.
func (g *Guard) RequireRoles(roles ...principal.Role) func(http.Handler) http.Handler {
	allowed := make(map[principal.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := principal.FromContext(r.Context())
			if p == nil {
				g.writeErr(w, r, ErrMissingCredentials)
				return
			}
			if len(allowed) > 0 && !allowed[p.Role] {
				g.logger.Warn("role denied",
					"id", p.ID,
					"role", p.Role,
					"path", r.URL.Path,
				)
				g.writeErr(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from an Authorization header of the
// form "Bearer <token>". The scheme match is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	if tok == "" {
		return "", false
	}
	return tok, true
}
