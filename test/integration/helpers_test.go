// Package integration provides integration tests for the apprendo API.
//
// Tests run against a real apprendo HTTP server with the full pipeline
// wired (rate limiting, payload screening, guards, error classifier),
// started in-process using net/http/httptest.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/apprendo/apprendo/pkg/audit"
	"github.com/apprendo/apprendo/pkg/credential"
	"github.com/apprendo/apprendo/pkg/guard"
	"github.com/apprendo/apprendo/pkg/password"
	"github.com/apprendo/apprendo/pkg/payload"
	"github.com/apprendo/apprendo/pkg/principal"
	"github.com/apprendo/apprendo/pkg/ratelimit"
	"github.com/apprendo/apprendo/pkg/store/memory"
	"github.com/apprendo/apprendo/pkg/token"
	"github.com/apprendo/apprendo/pkg/transport"
	transporthttp "github.com/apprendo/apprendo/pkg/transport/http"
)

// testEnv holds the shared server for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the apprendo server and its collaborators.
type TestEnvironment struct {
	Server   *httptest.Server
	Store    *memory.Store
	Counters *ratelimit.MemoryStore
	Audits   *audit.ChannelSink
}

// TestMain starts the gateway before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

// setupTestEnvironment wires the full production pipeline over the
// in-memory stores. Rate-limit ceilings are generous so only the tests
// that hammer on purpose trip them.
func setupTestEnvironment() *TestEnvironment {
	logger := slog.New(slog.DiscardHandler)

	issuer, err := token.New(token.Config{
		Secret: []byte("integration-secret"),
		TTL:    time.Hour,
		Issuer: "apprendo",
	})
	if err != nil {
		panic(fmt.Sprintf("creating token issuer: %v", err))
	}

	st := memory.New()
	creds := credential.New(st, &password.Bcrypt{Cost: 4}, issuer, logger)

	audits := audit.NewChannelSink(256)
	classifier := transport.NewClassifier(audit.New(logger, audits), false, logger)
	g := guard.New(issuer, creds, classifier.WriteError, logger)
	processor := payload.NewProcessor(payload.NewScreener(nil, logger))

	counters := ratelimit.NewMemoryStore()
	limiter := ratelimit.NewLimiter(counters,
		[]ratelimit.Window{
			{Name: "burst", Interval: time.Second, Limit: 200},
			{Name: "sustained", Interval: time.Minute, Limit: 2000},
		},
		ratelimit.DefaultBypassPaths, nil, logger)

	adapter := transporthttp.NewAdapter(creds, g, limiter, processor, classifier,
		transporthttp.DefaultConfig(), logger)

	return &TestEnvironment{
		Server:   httptest.NewServer(adapter.Handler()),
		Store:    st,
		Counters: counters,
		Audits:   audits,
	}
}

// Teardown stops the server and the counter janitor.
func (e *TestEnvironment) Teardown() {
	e.Server.Close()
	e.Counters.Close()
}

// doJSON issues a request against the shared server and decodes the
// JSON response body.
func doJSON(t *testing.T, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, testEnv.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 integration-suite")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}

	var decoded map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("%s %s: non-JSON response %q", method, path, data)
		}
	}
	return resp.StatusCode, decoded
}

// register creates an account with a unique email and returns its token.
func register(t *testing.T, email string) string {
	t.Helper()
	status, body := doJSON(t, "POST", "/api/auth/register", "", map[string]any{
		"email": email, "password": "password123", "firstName": "Mario", "lastName": "Rossi",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d body %v", email, status, body)
	}
	return body["access_token"].(string)
}

// seedAdmin inserts an ADMIN principal directly into the store and logs
// it in. Registration never grants the role.
func seedAdmin(t *testing.T, email string) string {
	t.Helper()

	hash, err := (&password.Bcrypt{Cost: 4}).Hash("adminpass123")
	if err != nil {
		t.Fatalf("hashing: %v", err)
	}
	admin := &principal.Principal{
		Email:        email,
		PasswordHash: hash,
		Role:         principal.RoleAdmin,
		Active:       true,
	}
	if err := testEnv.Store.Insert(t.Context(), admin); err != nil {
		t.Fatalf("seeding admin: %v", err)
	}

	status, body := doJSON(t, "POST", "/api/auth/login", "", map[string]any{
		"email": email, "password": "adminpass123",
	})
	if status != http.StatusOK {
		t.Fatalf("admin login: status %d body %v", status, body)
	}
	return body["access_token"].(string)
}
