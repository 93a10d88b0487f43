// Package transport provides the HTTP middleware chain and the terminal
// error classifier for the apprendo security gateway.
//
// The middleware chain wraps http.Handler with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID), and structured
// logging via log/slog. HTTP serving uses net/http with Go 1.22+
// ServeMux routing patterns in the http subpackage.
//
// The Classifier is the single place any pipeline failure becomes a
// wire response. Every stage (rate limiter, payload processor, guards,
// credential service, stores) resolves its conditions into typed errors
// and hands them here; handlers never build error responses themselves.
// Classification also routes severity-graded audit entries, including
// SECURITY_ALERT entries for requests that match probing heuristics.
package transport
