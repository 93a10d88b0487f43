// Package store provides the types shared across principal store
// implementations: sentinel errors and the constraint-violation error
// the terminal classifier translates into HTTP statuses.
//
// Store adapters (memory, postgres) implement the credential.PrincipalStore
// interface defined in pkg/credential. This package contains only shared
// types, not the interface itself.
package store
