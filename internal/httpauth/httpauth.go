// Package httpauth guards the streamable HTTP transport with bearer-token
// authentication. Tokens are HS256 JWTs signed with a shared secret; this
// suits single-operator deployments where issuing tokens out of band is
// acceptable.
package httpauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized wraps every verification failure so callers can treat
// them uniformly without leaking the underlying cause to clients.
var ErrUnauthorized = errors.New("httpauth: unauthorized")

// Authenticator verifies bearer tokens against a static HMAC secret.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// New returns an authenticator for the given shared secret.
func New(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("httpauth: secret is required")
	}
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256"}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(60*time.Second),
		),
	}, nil
}

// Verify parses and validates a raw token, returning its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrUnauthorized)
	}
	parsed, err := a.parser.Parse(token, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}
	return sub, nil
}

// Middleware rejects requests without a valid bearer token before they
// reach the wrapped handler.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := a.Verify(token); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
