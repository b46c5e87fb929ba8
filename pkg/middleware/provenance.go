package middleware

import (
	"net/http"
	"strings"

	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// Provenance returns middleware that marks each request as an API call and
// attaches the actor named in header to the request context. Requests
// without the header carry no actor, so records fall back to the system
// actor.
func Provenance(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(header))
			ctx := models.WithProvenance(r.Context(), models.ProvenanceContext{
				Source: models.SourceAPI,
				Actor:  actor,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
