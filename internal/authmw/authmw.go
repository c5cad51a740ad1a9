// Package authmw provides HTTP middleware for bearer token authentication.
package authmw

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/linnemanlabs/go-core/xerrors"
)

const bearerPrefix = "Bearer "

// BearerToken returns middleware that accepts requests whose Authorization
// header carries any of tokens. Tokens are compared as SHA-256 digests in
// constant time so neither content nor length leaks through timing. Blank
// tokens are ignored; at least one must remain.
func BearerToken(tokens ...string) func(http.Handler) http.Handler {
	var digests [][sha256.Size]byte
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			digests = append(digests, sha256.Sum256([]byte(t)))
		}
	}
	if len(digests) == 0 {
		panic(xerrors.New("at least one bearer token is required"))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, bearerPrefix) {
				unauthorized(w, "missing or malformed authorization header")
				return
			}

			got := sha256.Sum256([]byte(auth[len(bearerPrefix):]))
			match := 0
			for i := range digests {
				match |= subtle.ConstantTimeCompare(got[:], digests[i][:])
			}
			if match != 1 {
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SplitTokens parses a comma-separated token list.
func SplitTokens(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tcscope"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
