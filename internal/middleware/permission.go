package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/crucial707/licitasis/internal/audit"
)

// RequirePermission allows the request through only when the session actor holds
// permission. Refusals are recorded as ACCESS_DENIED and answered with 403.
// Use after JWTMiddleware.
func RequirePermission(rec *audit.Recorder, resolver audit.ClientResolver, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if actor.Permission != permission {
				rec.LogAccessDenied(r.Context(), actor, resolver.Client(r), r.URL.Path, permission)
				jsonError(w, "access denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
