package postgres

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/apprendo/apprendo/pkg/principal"
	"github.com/apprendo/apprendo/pkg/store"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if a container runtime is not available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("apprendo_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	st, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		st.Close()
	})

	return st
}

func makeTestPrincipal(email string) *principal.Principal {
	return &principal.Principal{
		Email:        email,
		PasswordHash: "$2a$12$testhashvalue",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         principal.RoleStudent,
		Active:       true,
	}
}

func TestSchemaStepsWellFormed(t *testing.T) {
	steps, err := loadSchemaSteps()
	if err != nil {
		t.Fatalf("loading schema steps: %v", err)
	}
	if len(steps) == 0 {
		t.Fatal("no embedded migrations")
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].version <= steps[i-1].version {
			t.Errorf("steps out of order: %q before %q", steps[i-1].name, steps[i].name)
		}
	}
	if !strings.Contains(steps[0].sql, "CREATE TABLE IF NOT EXISTS principals") {
		t.Errorf("first migration %q does not create principals", steps[0].name)
	}
}

func TestPostgres_MigrateIsIdempotent(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	p := makeTestPrincipal("ada@example.com")
	if err := st.Insert(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Running the migrations again must skip applied versions and
	// leave existing rows alone.
	if err := st.migrate(ctx); err != nil {
		t.Fatalf("re-running migrations: %v", err)
	}
	if _, err := st.FindByID(ctx, p.ID); err != nil {
		t.Fatalf("principal lost after re-migration: %v", err)
	}

	applied, err := st.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("reading ledger: %v", err)
	}
	steps, err := loadSchemaSteps()
	if err != nil {
		t.Fatalf("loading schema steps: %v", err)
	}
	if len(applied) != len(steps) {
		t.Errorf("ledger has %d versions, want %d", len(applied), len(steps))
	}
}

func TestPostgres_InsertAndFind(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	p := makeTestPrincipal("ada@example.com")
	if err := st.Insert(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected assigned ID")
	}

	byID, err := st.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != "ada@example.com" || byID.PasswordHash != p.PasswordHash {
		t.Errorf("unexpected record: %+v", byID)
	}

	byEmail, err := st.FindByEmail(ctx, "ADA@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != p.ID {
		t.Errorf("email lookup returned %q, want %q", byEmail.ID, p.ID)
	}
}

func TestPostgres_NotFound(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	if _, err := st.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.FindByID(ctx, "b9f6d1e2-0000-4000-8000-000000000000"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Non-UUID ids cannot match any record.
	if _, err := st.FindByID(ctx, "not-a-uuid"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
}

func TestPostgres_DuplicateEmail(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	if err := st.Insert(ctx, makeTestPrincipal("ada@example.com")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := st.Insert(ctx, makeTestPrincipal("Ada@Example.com"))
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestPostgres_Update(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	p := makeTestPrincipal("ada@example.com")
	if err := st.Insert(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	p.FirstName = "Augusta"
	p.Role = principal.RoleCreator
	p.Active = false
	if err := st.Update(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := st.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.FirstName != "Augusta" || got.Role != principal.RoleCreator || got.Active {
		t.Errorf("update not persisted: %+v", got)
	}

	missing := makeTestPrincipal("ghost@example.com")
	missing.ID = "b9f6d1e2-0000-4000-8000-000000000000"
	if err := st.Update(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_Delete(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	p := makeTestPrincipal("ada@example.com")
	if err := st.Insert(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := st.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.FindByID(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("deleted principal should not resolve")
	}
	if err := st.Delete(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_ListExcludesHashes(t *testing.T) {
	st := setupTestDB(t)
	ctx := context.Background()

	for _, email := range []string{"ada@example.com", "grace@example.com", "alan@example.com"} {
		if err := st.Insert(ctx, makeTestPrincipal(email)); err != nil {
			t.Fatalf("insert %s: %v", email, err)
		}
	}

	list, err := st.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 principals, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Error("expected newest-first ordering")
		}
	}
}
