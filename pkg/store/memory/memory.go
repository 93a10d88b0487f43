// Package memory provides an in-memory principal store for testing and
// lightweight deployments. Records are lost when the process restarts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apprendo/apprendo/pkg/credential"
	"github.com/apprendo/apprendo/pkg/principal"
	"github.com/apprendo/apprendo/pkg/store"
)

// Store is a mutex-guarded map of principals with a secondary email
// index enforcing the same uniqueness the SQL store gets from its
// constraint.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*principal.Principal
	byEmail map[string]string // lowercased email -> id
	now     func() time.Time
}

// Ensure Store implements credential.PrincipalStore at compile time.
var _ credential.PrincipalStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*principal.Principal),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail looks up a principal by email, case-insensitively.
func (s *Store) FindByEmail(_ context.Context, email string) (*principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// FindByID looks up a principal by ID.
func (s *Store) FindByID(_ context.Context, id string) (*principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Insert persists a new principal, assigning its ID and timestamps.
func (s *Store) Insert(_ context.Context, p *principal.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(p.Email)
	if _, exists := s.byEmail[key]; exists {
		return store.ErrDuplicateEmail
	}

	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	cp := *p
	s.byID[p.ID] = &cp
	s.byEmail[key] = p.ID
	return nil
}

// Update replaces the stored record and stamps UpdatedAt. An email
// change must not collide with another principal's email.
func (s *Store) Update(_ context.Context, p *principal.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[p.ID]
	if !ok {
		return store.ErrNotFound
	}

	newKey := emailKey(p.Email)
	oldKey := emailKey(old.Email)
	if newKey != oldKey {
		if _, taken := s.byEmail[newKey]; taken {
			return store.ErrDuplicateEmail
		}
		delete(s.byEmail, oldKey)
		s.byEmail[newKey] = p.ID
	}

	p.UpdatedAt = s.now().UTC()
	cp := *p
	s.byID[p.ID] = &cp
	return nil
}

// Delete removes a principal.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.byEmail, emailKey(p.Email))
	delete(s.byID, id)
	return nil
}

// List returns all principals projected to the public field set, sorted
// by creation time, newest first.
func (s *Store) List(_ context.Context) ([]principal.Public, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]principal.Public, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p.Public())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
