package core

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/caasmo/dripsched/apperr"
)

// RequireAPIKey protects every admin/tenant route except the OAuth callback
// and the worker tick route. The caller authenticates with
// "Authorization: Bearer <KAPTIV_API_KEY>".
func (a *App) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" || tokenString == authHeader {
			apperr.WriteJsonError(w, apperr.Auth, "missing or malformed authorization header")
			return
		}

		want := a.Config().APIKey
		if want == "" || subtle.ConstantTimeCompare([]byte(tokenString), []byte(want)) != 1 {
			apperr.WriteJsonError(w, apperr.Auth, "invalid api key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireWorkerSecret protects GET /api/run_scheduled_jobs. The caller
// authenticates with either an "x-worker-secret" header or a "secret" query
// parameter.
func (a *App) RequireWorkerSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get("x-worker-secret")
		if provided == "" {
			provided = r.URL.Query().Get("secret")
		}
		if provided == "" {
			apperr.WriteJsonError(w, apperr.Auth, "missing worker secret")
			return
		}

		want := a.Config().WorkerSecret
		if want == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(want)) != 1 {
			apperr.WriteJsonError(w, apperr.Auth, "invalid worker secret")
			return
		}

		next.ServeHTTP(w, r)
	})
}
