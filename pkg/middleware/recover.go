package middleware

import (
	"net/http"

	"github.com/gatherly/gatherly/pkg/httputil"
	"github.com/gatherly/gatherly/pkg/observability"
)

// Recover converts handler panics into 500 responses so one bad request
// cannot crash the server.
func Recover(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer observability.RecoverPanicWithCallback(logger, r.Method+" "+r.URL.Path, func() {
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Internal server error")
			})
			next.ServeHTTP(w, r)
		})
	}
}
