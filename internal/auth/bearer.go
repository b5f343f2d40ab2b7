// Package auth provides bearer-token authentication for the MCP endpoint.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Authenticator validates requests against a static bearer token shared
// with MCP clients. Requests are rejected before they reach tool dispatch,
// so a bad token never triggers an upstream call.
type Authenticator struct {
	bearerToken string
	skipPaths   map[string]bool
}

// NewAuthenticator creates a new static bearer token authenticator.
func NewAuthenticator(bearerToken string) *Authenticator {
	return &Authenticator{
		bearerToken: bearerToken,
		skipPaths: map[string]bool{
			"/health": true,
		},
	}
}

// Middleware wraps an HTTP handler with bearer token authentication.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			slog.Warn("rejected request with missing credentials", "path", r.URL.Path)
			writeUnauthorized(w, "missing bearer token")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(a.bearerToken)) != 1 {
			slog.Warn("rejected request with invalid credentials", "path", r.URL.Path)
			writeUnauthorized(w, "invalid bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken extracts the credential from the request headers.
func extractToken(r *http.Request) string {
	// Try authorization header first
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token := normalizeAuthHeader(auth); token != "" {
			return token
		}
	}
	// Try x-api-key header
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return ""
}

// normalizeAuthHeader strips an optional Bearer prefix from an
// Authorization header value.
func normalizeAuthHeader(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}

// jsonrpcError is the JSON-RPC error object returned on auth failure, so
// MCP clients surface a structured message instead of a bare status code.
type jsonrpcError struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Error   struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	resp := jsonrpcError{JSONRPC: "2.0"}
	resp.Error.Code = -32001
	resp.Error.Message = "unauthorized: " + message

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(resp)
}
