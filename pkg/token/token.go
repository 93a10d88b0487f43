// Package token issues and parses the signed session tokens that prove a
// principal's identity without a server-side session store.
//
// Tokens are HS256-signed JWTs carrying identity and role claims so that
// downstream authorization needs no extra lookup for coarse decisions.
// Parsing only proves the signature and expiry; liveness against the
// user store is the credential service's job.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/apprendo/apprendo/pkg/principal"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Sentinel errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the signed payload of a session token.
type Claims struct {
	Email     string         `json:"email"`
	Role      principal.Role `json:"role"`
	FirstName string         `json:"firstName,omitempty"`
	LastName  string         `json:"lastName,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the issuer settings.
type Config struct {
	// Secret is the process-wide HMAC signing key. Required.
	Secret []byte

	// TTL bounds the token lifetime. Default: 24h.
	TTL time.Duration

	// Issuer is stamped into and required from every token when set.
	Issuer string
}

// Issuer signs and parses session tokens with a process-wide secret.
type Issuer struct {
	config Config
	now    func() time.Time
}

// New creates a token Issuer. The secret must be non-empty.
func New(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Issuer{config: cfg, now: time.Now}, nil
}

// Issue creates a signed token for the principal.
func (i *Issuer) Issue(p *principal.Principal) (string, error) {
	now := i.now()
	claims := Claims{
		Email:     p.Email,
		Role:      p.Role,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    i.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.Secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse validates the signature and expiry of a raw token string and
// returns its claims. An expired, unsigned, or garbled token is never
// accepted.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.config.Issuer))
	}

	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.config.Secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}
