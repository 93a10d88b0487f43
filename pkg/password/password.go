// Package password provides one-way salted password hashing and
// verification for the credential service.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrHashingFailure indicates the hashing primitive itself failed.
// It is fatal to the calling operation.
var ErrHashingFailure = errors.New("password hashing failure")

// Hasher hashes plaintext passwords and verifies candidates against
// stored hashes. Implementations must be safe for concurrent use.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// DefaultCost is the bcrypt work factor. Intentionally slow.
const DefaultCost = 12

// Bcrypt is a Hasher backed by golang.org/x/crypto/bcrypt. The salt is
// generated per hash and embedded in the encoded output.
type Bcrypt struct {
	Cost int
}

var _ Hasher = (*Bcrypt)(nil)

// NewBcrypt creates a Bcrypt hasher with the default work factor.
func NewBcrypt() *Bcrypt {
	return &Bcrypt{Cost: DefaultCost}
}

// Hash derives a salted one-way hash of plaintext.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches the stored hash. The
// comparison is constant-time within bcrypt itself.
func (b *Bcrypt) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
