package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

var (
	errMissingAuthorization = errors.New("missing Authorization header")
	errInvalidAuthorization = errors.New("invalid Authorization header format")
	errInvalidToken         = errors.New("invalid bearer token")
)

// Tokens shorter than this are accepted with a warning.
const minTokenLength = 16

// JSON-RPC code for a rejected token, in the implementation defined range.
const codeUnauthorized = -32001

// authenticateBearer compares the token of an Authorization header with
// expected in constant time.
func authenticateBearer(header, expected string) error {
	if header == "" {
		return errMissingAuthorization
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errInvalidAuthorization
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return errInvalidToken
	}
	return nil
}

func weakToken(token string) bool {
	return len(token) < minTokenLength
}

// requireBearer answers 401 with a JSON-RPC error body to requests without
// the expected token.
func requireBearer(expected string, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := authenticateBearer(r.Header.Get("Authorization"), expected)
		if err == nil {
			next.ServeHTTP(w, r)
			return
		}
		logger.Warn("authentication failed", "client", clientIP(r), "path", r.URL.Path, "error", err)
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"jsonrpc": "2.0",
			"id":      nil,
			"error":   map[string]any{"code": codeUnauthorized, "message": "Authentication required"},
		})
	})
}
