// Package http serves the apprendo auth API over HTTP. The adapter
// wires the full request-security pipeline around every route: rate
// limiting, payload sanitization and threat screening, the guard chain,
// and the terminal error classifier.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apprendo/apprendo/pkg/api"
	"github.com/apprendo/apprendo/pkg/credential"
	"github.com/apprendo/apprendo/pkg/guard"
	"github.com/apprendo/apprendo/pkg/observability"
	"github.com/apprendo/apprendo/pkg/payload"
	"github.com/apprendo/apprendo/pkg/principal"
	"github.com/apprendo/apprendo/pkg/ratelimit"
	"github.com/apprendo/apprendo/pkg/transport"
)

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":3000",
		MaxBodySize:     1 << 20, // 1 MB
		ShutdownTimeout: 30,
	}
}

// Adapter routes requests to the pipeline and serializes responses.
type Adapter struct {
	creds      *credential.Service
	guard      *guard.Guard
	limiter    *ratelimit.Limiter
	processor  *payload.Processor
	classifier *transport.Classifier
	mux        *http.ServeMux
	config     Config
	logger     *slog.Logger
}

// NewAdapter creates the HTTP adapter. All collaborators are required
// except limiter, which may be nil to disable throttling (tests).
func NewAdapter(
	creds *credential.Service,
	g *guard.Guard,
	limiter *ratelimit.Limiter,
	processor *payload.Processor,
	classifier *transport.Classifier,
	cfg Config,
	logger *slog.Logger,
) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		creds:      creds,
		guard:      g,
		limiter:    limiter,
		processor:  processor,
		classifier: classifier,
		mux:        http.NewServeMux(),
		config:     cfg,
		logger:     logger,
	}
	a.routes()
	return a
}

func (a *Adapter) routes() {
	auth := a.guard.Authenticate
	adminOnly := a.guard.RequireRoles(principal.RoleAdmin)

	a.mux.HandleFunc("POST /api/auth/register", a.handleRegister)
	a.mux.HandleFunc("POST /api/auth/login", a.handleLogin)
	a.mux.Handle("POST /api/auth/logout", auth(http.HandlerFunc(a.handleLogout)))
	a.mux.Handle("GET /api/auth/profile", auth(http.HandlerFunc(a.handleProfile)))
	a.mux.Handle("GET /api/auth/me", auth(http.HandlerFunc(a.handleProfile)))
	a.mux.Handle("GET /api/auth/verify", auth(http.HandlerFunc(a.handleVerify)))
	a.mux.Handle("PATCH /api/auth/profile", auth(http.HandlerFunc(a.handleUpdateProfile)))
	a.mux.Handle("POST /api/auth/change-password", auth(http.HandlerFunc(a.handleChangePassword)))
	a.mux.Handle("DELETE /api/auth/account", auth(http.HandlerFunc(a.handleDeleteAccount)))
	a.mux.Handle("GET /api/auth/admin/users", auth(adminOnly(http.HandlerFunc(a.handleListUsers))))

	// Health lives outside the api prefix and is exempt from throttling.
	a.mux.HandleFunc("GET /health", a.handleHealth)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	a.mux.HandleFunc("/", a.handleNotFound)
}

// Handler returns the adapter's handler wrapped in the full middleware
// chain: recovery, request ID, logging, metrics, then rate limiting.
func (a *Adapter) Handler() http.Handler {
	middlewares := []transport.Middleware{
		transport.Recovery(a.classifier),
		transport.RequestID(),
		transport.Logging(a.logger),
		observability.MetricsMiddleware,
	}
	if a.limiter != nil {
		// The limiter runs before the guards, so no principal is in the
		// context here and its ADMIN bypass only fires when the limiter
		// is composed after authentication.
		middlewares = append(middlewares, a.limiter.Middleware(a.classifier.WriteError))
	}
	return transport.Chain(middlewares...)(a.mux)
}

// Declared field sets per operation. Unknown fields are rejected.
var (
	registerSchema = &payload.Schema{Fields: []payload.Field{
		{Name: "email", Kind: payload.KindString, Required: true, MaxLen: 254, Email: true},
		{Name: "password", Kind: payload.KindString, Required: true, MinLen: 8, MaxLen: 128},
		{Name: "firstName", Kind: payload.KindString, MaxLen: 100},
		{Name: "lastName", Kind: payload.KindString, MaxLen: 100},
		{Name: "role", Kind: payload.KindString, Enum: []string{"STUDENT", "CREATOR"}},
	}}

	loginSchema = &payload.Schema{Fields: []payload.Field{
		{Name: "email", Kind: payload.KindString, Required: true, MaxLen: 254, Email: true},
		{Name: "password", Kind: payload.KindString, Required: true, MaxLen: 128},
	}}

	updateProfileSchema = &payload.Schema{Fields: []payload.Field{
		{Name: "firstName", Kind: payload.KindString, MaxLen: 100},
		{Name: "lastName", Kind: payload.KindString, MaxLen: 100},
	}}

	changePasswordSchema = &payload.Schema{Fields: []payload.Field{
		{Name: "currentPassword", Kind: payload.KindString, Required: true, MaxLen: 128},
		{Name: "newPassword", Kind: payload.KindString, Required: true, MinLen: 8, MaxLen: 128},
	}}
)

// authResponse is the wire shape of register and login.
type authResponse struct {
	Message     string           `json:"message"`
	AccessToken string           `json:"access_token"`
	User        principal.Public `json:"user"`
}

func (a *Adapter) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, ok := a.decodeBody(w, r, registerSchema)
	if !ok {
		return
	}

	res, err := a.creds.Register(r.Context(), credential.RegisterInput{
		Email:     payload.String(body, "email"),
		Password:  payload.String(body, "password"),
		FirstName: payload.String(body, "firstName"),
		LastName:  payload.String(body, "lastName"),
		Role:      principal.Role(payload.String(body, "role")),
	})
	if err != nil {
		a.classifier.WriteError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, authResponse{
		Message:     "registration successful",
		AccessToken: res.AccessToken,
		User:        res.Profile,
	})
}

func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, ok := a.decodeBody(w, r, loginSchema)
	if !ok {
		return
	}

	res, err := a.creds.Login(r.Context(), payload.String(body, "email"), payload.String(body, "password"))
	if err != nil {
		a.classifier.WriteError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusOK, authResponse{
		Message:     "login successful",
		AccessToken: res.AccessToken,
		User:        res.Profile,
	})
}

// handleLogout acknowledges the logout. Tokens are stateless and cannot
// be revoked server-side; the client discards its copy.
func (a *Adapter) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (a *Adapter) handleProfile(w http.ResponseWriter, r *http.Request) {
	p := principal.FromContext(r.Context())
	a.writeJSON(w, http.StatusOK, p.Public())
}

func (a *Adapter) handleVerify(w http.ResponseWriter, r *http.Request) {
	p := principal.FromContext(r.Context())
	a.writeJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"user":      p.Public(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *Adapter) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	body, ok := a.decodeBody(w, r, updateProfileSchema)
	if !ok {
		return
	}

	p := principal.FromContext(r.Context())
	updated, err := a.creds.UpdateProfile(r.Context(), p.ID, credential.UpdateProfileInput{
		FirstName: payload.OptionalString(body, "firstName"),
		LastName:  payload.OptionalString(body, "lastName"),
	})
	if err != nil {
		a.classifier.WriteError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusOK, updated.Public())
}

func (a *Adapter) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	body, ok := a.decodeBody(w, r, changePasswordSchema)
	if !ok {
		return
	}

	p := principal.FromContext(r.Context())
	err := a.creds.ChangePassword(r.Context(), p.ID,
		payload.String(body, "currentPassword"),
		payload.String(body, "newPassword"),
	)
	if err != nil {
		a.classifier.WriteError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (a *Adapter) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	p := principal.FromContext(r.Context())
	if err := a.creds.DeleteAccount(r.Context(), p.ID); err != nil {
		a.classifier.WriteError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

func (a *Adapter) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := a.creds.ListPrincipals(r.Context())
	if err != nil {
		a.classifier.WriteError(w, r, err)
		return
	}
	p := principal.FromContext(r.Context())
	a.writeJSON(w, http.StatusOK, map[string]any{
		"users":       list,
		"total":       len(list),
		"requestedBy": p.Email,
	})
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNotFound routes unknown paths through the classifier so probe
// attempts hit the audit heuristics.
func (a *Adapter) handleNotFound(w http.ResponseWriter, r *http.Request) {
	a.classifier.WriteError(w, r, api.NewNotFoundError("resource not found"))
}

// decodeBody reads, sanitizes, screens, and validates the JSON body.
// On failure it writes the classified response and returns ok=false.
func (a *Adapter) decodeBody(w http.ResponseWriter, r *http.Request, schema *payload.Schema) (map[string]any, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			a.classifier.WriteError(w, r, api.NewValidationError([]string{"body: too large"}))
		} else {
			a.classifier.WriteError(w, r, api.NewValidationError([]string{"body: must be valid JSON"}))
		}
		return nil, false
	}

	clean, err := a.processor.Process(body, schema)
	if err != nil {
		a.classifier.WriteError(w, r, err)
		return nil, false
	}
	return clean, true
}

func (a *Adapter) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("writing response", "error", err)
	}
}
