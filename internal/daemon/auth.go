package daemon

import (
	"net/http"
	"strings"
)

const bearerScheme = "Bearer "

// authMiddleware guards the control API with the configured bearer token. An
// empty token means the daemon serves a single local operator, so requests
// pass through unchecked.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerScheme)
		if !ok || presented != token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
