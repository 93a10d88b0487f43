package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/apprendo/apprendo/pkg/api"
	"github.com/apprendo/apprendo/pkg/audit"
	"github.com/apprendo/apprendo/pkg/credential"
	"github.com/apprendo/apprendo/pkg/guard"
	"github.com/apprendo/apprendo/pkg/observability"
	"github.com/apprendo/apprendo/pkg/payload"
	"github.com/apprendo/apprendo/pkg/principal"
	"github.com/apprendo/apprendo/pkg/ratelimit"
	"github.com/apprendo/apprendo/pkg/store"
	"github.com/apprendo/apprendo/pkg/token"
)

// genericServerMessage replaces internal 5xx messages in production.
const genericServerMessage = "internal server error"

// Classifier is the single terminal component that turns any pipeline
// failure into the uniform wire shape and routes a matching audit
// entry. Handlers never construct error responses themselves.
type Classifier struct {
	auditor    *audit.Logger
	production bool
	logger     *slog.Logger
}

// NewClassifier creates a Classifier. In production mode, internal
// messages for 5xx-class errors are replaced with a generic phrase.
func NewClassifier(auditor *audit.Logger, production bool, logger *slog.Logger) *Classifier {
	if auditor == nil {
		auditor = audit.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{auditor: auditor, production: production, logger: logger}
}

// WriteError classifies err, writes the JSON error envelope, and emits
// the audit entries. It never fails: unrecognized errors fall back to a
// generic 500.
func (c *Classifier) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind, message, details := c.classify(err)
	status := api.HTTPStatus(kind)

	if status >= 500 && c.production {
		message = genericServerMessage
		details = nil
	}

	resp := api.ErrorResponse{
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
		Path:       r.URL.Path,
		Method:     r.Method,
		Message:    message,
		ErrorKind:  kind,
		Details:    details,
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		observability.AuthFailuresTotal.WithLabelValues(string(kind)).Inc()
	}

	c.audit(r, status, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		c.logger.Error("writing error response", "error", encodeErr)
	}
}

// classify resolves any error into a stable kind plus external message.
func (c *Classifier) classify(err error) (api.ErrorKind, string, any) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, apiErr.Message, apiErr.Details
	}

	var threat *payload.ThreatError
	if errors.As(err, &threat) {
		// The matched signature is never echoed to the caller.
		return api.ErrorKindUnsafeInput, "invalid input detected", nil
	}

	var constraint *store.ConstraintError
	if errors.As(err, &constraint) {
		return c.classifyConstraint(constraint)
	}

	switch {
	case errors.Is(err, guard.ErrMissingCredentials):
		return api.ErrorKindUnauthenticated, "authentication required", nil
	case errors.Is(err, guard.ErrInvalidToken),
		errors.Is(err, token.ErrTokenInvalid),
		errors.Is(err, token.ErrTokenExpired):
		return api.ErrorKindUnauthenticated, "invalid or expired token", nil
	case errors.Is(err, guard.ErrForbidden):
		return api.ErrorKindForbidden, "insufficient permissions", nil
	case errors.Is(err, credential.ErrInvalidCredentials):
		return api.ErrorKindInvalidCredentials, "invalid credentials", nil
	case errors.Is(err, credential.ErrAccountDisabled):
		return api.ErrorKindAccountDisabled, "account disabled", nil
	case errors.Is(err, credential.ErrRoleNotAllowed):
		return api.ErrorKindValidation, "requested role not allowed", nil
	case errors.Is(err, store.ErrDuplicateEmail):
		return api.ErrorKindDuplicate, "email already registered", nil
	case errors.Is(err, store.ErrNotFound):
		return api.ErrorKindNotFound, "resource not found", nil
	case errors.Is(err, ratelimit.ErrRateLimited):
		return api.ErrorKindRateLimited, "too many requests, retry later", nil
	}

	// Unrecognized failure; the real message is only surfaced outside
	// production.
	return api.ErrorKindUnknown, err.Error(), nil
}

// classifyConstraint applies the fixed storage-engine code table.
func (c *Classifier) classifyConstraint(e *store.ConstraintError) (api.ErrorKind, string, any) {
	switch e.Code {
	case store.CodeUniqueViolation:
		return api.ErrorKindConflict, "resource already exists", nil
	case store.CodeForeignKeyViolation:
		return api.ErrorKindValidation, "invalid reference", nil
	case store.CodeNotNullViolation:
		return api.ErrorKindValidation, "required field missing", nil
	case store.CodeUndefinedTable:
		return api.ErrorKindStorage, "database configuration error", nil
	default:
		return api.ErrorKindStorage, fmt.Sprintf("database error: %v", e.Err), nil
	}
}

// audit emits the severity-routed entry plus, when the request looks
// like probing, an extra SECURITY_ALERT entry.
func (c *Classifier) audit(r *http.Request, status int, err error) {
	category, severity := audit.Classify(status)
	if category == "" && !audit.Suspicious(status, r.URL.Path, r.UserAgent()) {
		return
	}

	entry := audit.Entry{
		StatusCode: status,
		Path:       r.URL.Path,
		Method:     r.Method,
		IP:         ratelimit.ClientIP(r),
		UserAgent:  r.UserAgent(),
	}
	if p := principal.FromContext(r.Context()); p != nil {
		entry.PrincipalID = p.ID
		entry.PrincipalRole = string(p.Role)
	}

	if category != "" {
		e := entry
		e.Category = category
		e.Severity = severity
		e.Message = fmt.Sprintf("%s: %s %s - %d", categoryLabel(category), r.Method, r.URL.Path, status)
		c.auditor.Record(r.Context(), e)
	}

	// Threat-screen trips always alert; other failures alert when the
	// suspicion heuristics fire.
	var threat *payload.ThreatError
	if errors.As(err, &threat) {
		e := entry
		e.Category = audit.CategorySecurityAlert
		e.Severity = audit.SeverityCritical
		e.Message = "threat signature matched"
		e.Indicators = []string{string(threat.Category)}
		e.Sample = threat.Sample
		c.auditor.Record(r.Context(), e)
		return
	}

	if audit.Suspicious(status, r.URL.Path, r.UserAgent()) {
		e := entry
		e.Category = audit.CategorySecurityAlert
		e.Severity = audit.SeverityCritical
		e.Message = "suspicious activity detected"
		e.Indicators = audit.Indicators(status, r.URL.Path, r.UserAgent())
		c.auditor.Record(r.Context(), e)
	}
}

func categoryLabel(c audit.Category) string {
	switch c {
	case audit.CategoryServerError:
		return "Server Error"
	case audit.CategorySecurityAudit:
		return "Security"
	default:
		return "Client Error"
	}
}
