package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budgenudge/internal/logger"
)

const secret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(sub string) Claims {
	return Claims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func whoami() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		if !ok {
			WriteError(w, http.StatusInternalServerError, "no user")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"user_id": id})
	})
}

func TestAuth(t *testing.T) {
	h := Auth(secret)(whoami())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("user-1")), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong key", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other-secret"), validClaims("user-1")), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}), http.StatusUnauthorized},
		{"no subject", "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("")), http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/adf", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":"user-1"}`, rec.Body.String())
			}
		})
	}
}

func TestAuth_RejectsNoneAlgorithm(t *testing.T) {
	token := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims("user-1"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	Auth(secret)(whoami()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookSecret(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	for _, tt := range []struct {
		configured, sent string
		status           int
	}{
		{"hook", "hook", http.StatusNoContent},
		{"hook", "nope", http.StatusUnauthorized},
		{"hook", "", http.StatusUnauthorized},
		{"", "", http.StatusUnauthorized},
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/plaid", nil)
		if tt.sent != "" {
			req.Header.Set(WebhookSecretHeader, tt.sent)
		}
		rec := httptest.NewRecorder()
		WebhookSecret(tt.configured)(ok).ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, "configured=%q sent=%q", tt.configured, tt.sent)
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf)

	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		l := logger.FromContext(r.Context())
		l.Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	}), RequestID, Logger(log))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), "req-42")
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestAuth_TagsRequestLoggerWithUser(t *testing.T) {
	var buf bytes.Buffer
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logger.FromContext(r.Context())
		l.Info().Msg("handler")
	}), Logger(logger.NewWithWriter(&buf)), Auth(secret))

	req := httptest.NewRequest(http.MethodGet, "/api/adf", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("user-7")))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), `"message":"handler"`)
	assert.Contains(t, buf.String(), `"user_id":"user-7"`)
}

func TestRecovery_LogsRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		RequestID, Recovery(logger.NewWithWriter(&buf)))

	req := httptest.NewRequest(http.MethodGet, "/api/adf", nil)
	req.Header.Set("X-Request-ID", "req-panic")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"request_id":"req-panic"`)
}

func TestRecovery(t *testing.T) {
	h := Recovery(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS([]string{"*"})(whoami()).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/adf", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowList(t *testing.T) {
	h := CORS([]string{"https://app.krezzo.com/"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	tests := []struct {
		origin string
		want   string
	}{
		{"https://app.krezzo.com", "https://app.krezzo.com"},
		{"https://evil.example", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/adf", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"), "origin=%q", tt.origin)
	}
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/jobs/{id}", RouteLabel("/api/jobs/abc-123"))
	assert.Equal(t, "/api/tagged-merchants/{id}", RouteLabel("/api/tagged-merchants/7"))
	assert.Equal(t, "/api/jobs/", RouteLabel("/api/jobs/"))
	assert.Equal(t, "/api/adf", RouteLabel("/api/adf"))
}
