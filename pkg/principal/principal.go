// Package principal defines the authenticated identity record the
// security pipeline manages, its role enum, and context helpers for
// carrying a resolved principal through a request.
package principal

import "time"

// Role classifies what a principal is allowed to do.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleCreator Role = "CREATOR"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCreator, RoleAdmin:
		return true
	}
	return false
}

// Principal is the full account record. PasswordHash never crosses the
// HTTP boundary; serialization always goes through Public.
type Principal struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Role          Role
	Active        bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAdmin reports whether the principal has administrative privileges.
func (p *Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanCreateContent reports whether the principal may publish courses.
func (p *Principal) CanCreateContent() bool {
	return p.Role == RoleCreator || p.Role == RoleAdmin
}

// Public is the projection of a Principal that may be returned to
// callers. It intentionally has no password hash field.
type Public struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Role          Role      `json:"role"`
	Active        bool      `json:"isActive"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Public returns the caller-visible projection of the principal.
func (p *Principal) Public() Public {
	return Public{
		ID:            p.ID,
		Email:         p.Email,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Role:          p.Role,
		Active:        p.Active,
		EmailVerified: p.EmailVerified,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
