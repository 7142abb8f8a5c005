// Package handlers implements the JSON API. Every handler reads the
// authenticated user from the request context and answers with JSON;
// errors are {"error": "..."}.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/domain"
)

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

// userID returns the authenticated user or writes 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return id, true
}

// decodeJSON reads the request body into v or writes 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps repository errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeStoreError logs err and answers with the mapped status. Internal
// errors get the generic message; 404 and 409 say what happened.
func writeStoreError(w http.ResponseWriter, log zerolog.Logger, err error, message string) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		middleware.WriteError(w, status, "Not found")
	case http.StatusConflict:
		middleware.WriteError(w, status, "Already exists")
	default:
		log.Error().Err(err).Msg(message)
		middleware.WriteError(w, status, message)
	}
}

// methodNotAllowed writes 405.
func methodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// parseDate parses an optional YYYY-MM-DD value.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// intParam parses an optional integer query parameter within [min, max].
func intParam(r *http.Request, name string, def, min, max int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}
