package httpapi

import (
	"context"
	"net/http"
	"strings"
)

const msgAuthRequired = "Authentication required"

type uidKey struct{}

// Authenticator resolves bearer tokens to user IDs from a static table.
// With an empty table every non-empty token is accepted as its own user
// ID, which is convenient for local development.
type Authenticator struct {
	tokens map[string]string
}

func NewAuthenticator(tokens map[string]string) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Open reports whether any token is accepted.
func (a *Authenticator) Open() bool { return len(a.tokens) == 0 }

// Resolve returns the user ID for the request's bearer token.
func (a *Authenticator) Resolve(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", false
	}
	if a.Open() {
		return token, true
	}
	uid, ok := a.tokens[token]
	return uid, ok && uid != ""
}

// Require rejects unauthenticated requests with 401 and stores the user ID
// in the request context otherwise.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := a.Resolve(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, msgAuthRequired)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), uidKey{}, uid)))
	}
}

// userID returns the authenticated user of a request passed through Require.
func userID(r *http.Request) string {
	uid, _ := r.Context().Value(uidKey{}).(string)
	return uid
}
