package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caasmo/dripsched/config"
)

func appWithSecrets(apiKey, workerSecret string) *App {
	cfg := config.NewDefaultConfig()
	cfg.APIKey = apiKey
	cfg.WorkerSecret = workerSecret
	a := &App{}
	a.SetConfigProvider(config.NewProvider(cfg))
	return a
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAPIKey(t *testing.T) {
	a := appWithSecrets("secret-key", "")
	handler := a.RequireAPIKey(okHandler())

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "secret-key", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"correct key", "Bearer secret-key", http.StatusOK},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != c.want {
				t.Errorf("status = %d, want %d", w.Code, c.want)
			}
		})
	}
}

func TestRequireWorkerSecret(t *testing.T) {
	a := appWithSecrets("", "worker-secret")
	handler := a.RequireWorkerSecret(okHandler())

	t.Run("header match", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/run_scheduled_jobs", nil)
		req.Header.Set("x-worker-secret", "worker-secret")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("query param match", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/run_scheduled_jobs?secret=worker-secret", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("no secret provided", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/run_scheduled_jobs", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/run_scheduled_jobs?secret=wrong", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}
