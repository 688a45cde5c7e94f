package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrSessionExpired = errors.New("session expired")
	ErrNoRefreshToken = errors.New("no refresh token")
)

// APIError is a non-2xx response from the backend. The body is kept as
// returned so callers can inspect field errors.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Detail     string
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       body,
		Detail:     parseDetail(body),
	}
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// FieldErrors decodes a {"field": ["message", ...]} validation body.
func (e *APIError) FieldErrors() map[string][]string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(e.Body, &raw); err != nil {
		return nil
	}

	fields := make(map[string][]string)
	for field, value := range raw {
		var messages []string
		if err := json.Unmarshal(value, &messages); err == nil {
			fields[field] = messages
			continue
		}
		var message string
		if err := json.Unmarshal(value, &message); err == nil {
			fields[field] = []string{message}
		}
	}
	return fields
}

const maxDetailLen = 200

func parseDetail(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			if s, ok := payload[key].(string); ok && s != "" {
				return s
			}
		}
		return ""
	}

	text := strings.TrimSpace(string(body))
	return truncate(text, maxDetailLen)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
