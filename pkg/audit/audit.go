// Package audit emits structured records of failed or security-relevant
// requests, routed by severity. Records go to the process log and to
// any number of pluggable sinks; this subsystem never reads them back.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/apprendo/apprendo/pkg/observability"
)

// Category routes an entry to its audit channel.
type Category string

const (
	CategoryServerError   Category = "SERVER_ERROR"
	CategorySecurityAudit Category = "SECURITY_AUDIT"
	CategoryClientError   Category = "CLIENT_ERROR"
	CategorySecurityAlert Category = "SECURITY_ALERT"
)

// Severity grades an entry for alerting.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Entry is one audit record. PrincipalID and PrincipalRole are empty
// when the request never authenticated.
type Entry struct {
	Timestamp     time.Time `json:"timestamp"`
	StatusCode    int       `json:"statusCode"`
	Path          string    `json:"path"`
	Method        string    `json:"method"`
	IP            string    `json:"ip,omitempty"`
	UserAgent     string    `json:"userAgent,omitempty"`
	PrincipalID   string    `json:"principalId,omitempty"`
	PrincipalRole string    `json:"principalRole,omitempty"`
	Severity      Severity  `json:"severity"`
	Category      Category  `json:"category"`
	Message       string    `json:"message"`
	Indicators    []string  `json:"indicators,omitempty"`
	Sample        string    `json:"sample,omitempty"`
}

// Classify derives the audit channel and severity from a status code.
// 2xx/3xx requests are not audited and yield an empty category.
func Classify(status int) (Category, Severity) {
	switch {
	case status >= 500:
		return CategoryServerError, SeverityHigh
	case status == 401 || status == 403:
		return CategorySecurityAudit, SeverityMedium
	case status >= 400:
		return CategoryClientError, SeverityLow
	}
	return "", ""
}

// Logger routes entries to the process log and the configured sinks.
type Logger struct {
	logger *slog.Logger
	sinks  []Sink
	now    func() time.Time
}

// New creates an audit Logger.
func New(logger *slog.Logger, sinks ...Sink) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, sinks: sinks, now: time.Now}
}

// Record stamps and emits the entry. It never fails: a broken sink must
// not turn an audit write into a request failure.
func (l *Logger) Record(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}

	attrs := []any{
		"statusCode", e.StatusCode,
		"path", e.Path,
		"method", e.Method,
		"ip", e.IP,
		"userAgent", e.UserAgent,
		"severity", string(e.Severity),
		"type", string(e.Category),
	}
	if e.PrincipalID != "" {
		attrs = append(attrs, "principalId", e.PrincipalID, "principalRole", e.PrincipalRole)
	}
	if len(e.Indicators) > 0 {
		attrs = append(attrs, "indicators", e.Indicators)
	}
	if e.Sample != "" {
		attrs = append(attrs, "sample", e.Sample)
	}

	switch e.Category {
	case CategoryServerError, CategorySecurityAlert:
		l.logger.Error(e.Message, attrs...)
	default:
		l.logger.Warn(e.Message, attrs...)
	}

	observability.AuditEventsTotal.WithLabelValues(string(e.Category)).Inc()

	for _, sink := range l.sinks {
		sink.Emit(ctx, e)
	}
}
