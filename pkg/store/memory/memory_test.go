package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/apprendo/apprendo/pkg/principal"
	"github.com/apprendo/apprendo/pkg/store"
)

func insert(t *testing.T, s *Store, email string) *principal.Principal {
	t.Helper()
	p := &principal.Principal{
		Email:        email,
		PasswordHash: "$2a$04$fakehash",
		FirstName:    "Ada",
		Role:         principal.RoleStudent,
		Active:       true,
	}
	if err := s.Insert(context.Background(), p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return p
}

func TestInsertAssignsIDAndTimestamps(t *testing.T) {
	s := New()
	p := insert(t, s, "ada@example.com")

	if p.ID == "" {
		t.Fatal("expected assigned ID")
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be stamped")
	}

	got, err := s.FindByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if got.Email != "ada@example.com" {
		t.Errorf("email = %q", got.Email)
	}
}

func TestInsertDuplicateEmail(t *testing.T) {
	s := New()
	insert(t, s, "ada@example.com")

	err := s.Insert(context.Background(), &principal.Principal{Email: "ADA@example.com"})
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail for case-variant email, got %v", err)
	}
}

func TestFindByEmailCaseInsensitive(t *testing.T) {
	s := New()
	insert(t, s, "ada@example.com")

	if _, err := s.FindByEmail(context.Background(), "Ada@Example.com"); err != nil {
		t.Fatalf("case-insensitive lookup: %v", err)
	}
	if _, err := s.FindByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindReturnsCopy(t *testing.T) {
	s := New()
	p := insert(t, s, "ada@example.com")

	got, err := s.FindByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	got.FirstName = "mutated"

	again, _ := s.FindByID(context.Background(), p.ID)
	if again.FirstName == "mutated" {
		t.Fatal("store handed out a shared pointer")
	}
}

func TestUpdate(t *testing.T) {
	s := New()
	p := insert(t, s, "ada@example.com")

	p.FirstName = "Augusta"
	if err := s.Update(context.Background(), p); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.FindByID(context.Background(), p.ID)
	if got.FirstName != "Augusta" {
		t.Errorf("first name = %q", got.FirstName)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Error("UpdatedAt should be stamped on update")
	}
}

func TestUpdateEmailCollision(t *testing.T) {
	s := New()
	insert(t, s, "ada@example.com")
	p := insert(t, s, "grace@example.com")

	p.Email = "ada@example.com"
	if err := s.Update(context.Background(), p); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	// Changing to a free email releases the old index slot.
	p.Email = "grace@newdomain.com"
	if err := s.Update(context.Background(), p); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.FindByEmail(context.Background(), "grace@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("old email should no longer resolve")
	}
}

func TestDelete(t *testing.T) {
	s := New()
	p := insert(t, s, "ada@example.com")

	if err := s.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.FindByID(context.Background(), p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("deleted principal should not resolve by id")
	}
	if _, err := s.FindByEmail(context.Background(), "ada@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("deleted principal should not resolve by email")
	}
	if err := s.Delete(context.Background(), p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProjectsPublicFields(t *testing.T) {
	s := New()
	insert(t, s, "ada@example.com")
	insert(t, s, "grace@example.com")

	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
}
