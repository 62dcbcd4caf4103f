package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwise1/outpost/config"
	"github.com/bwise1/outpost/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestAPI() *API {
	return &API{Config: &config.Config{
		JwtSecret:        testSecret,
		JwtExpires:       "1h",
		PriorityRadiusKm: 50,
	}}
}

// asUser stands in for RequireLogin without touching the database.
func asUser(id uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), values.ContextUserIDKey, id.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func (e envelope) fieldErrors(t *testing.T) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(e.Error, &out), "error detail: %s", e.Error)
	return out
}

func serve(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	}
	return rec, env
}

// router wires a single route behind request tracing, optionally as a user.
func router(method, pattern string, h Handler, user *uuid.UUID) http.Handler {
	mux := chi.NewRouter()
	mux.Use(RequestTracing)
	if user != nil {
		mux.Use(asUser(*user))
	}
	mux.Method(method, pattern, h)
	return mux
}
