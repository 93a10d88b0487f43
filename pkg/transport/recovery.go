package transport

import (
	"fmt"
	"net/http"

	"github.com/apprendo/apprendo/pkg/api"
)

// Recovery returns middleware that catches panics in the handler chain
// and converts them to classified server error responses. The server
// continues to accept new requests after a panic is recovered.
func Recovery(c *Classifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					c.WriteError(w, r, api.NewServerError(fmt.Sprintf("internal server error: %v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
