// Package auth verifies JWT access tokens and exposes the caller's identity
// to handlers via the request context.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey struct{}

// Identity is the authenticated caller extracted from a verified token.
type Identity struct {
	UserID     string
	Email      string
	Role       string
	FacilityID string
}

// Claims is the token payload this service issues and accepts.
type Claims struct {
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	FacilityID string `json:"facilityId,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed access tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for tokens signed with the given HMAC secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token string and returns the caller identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return &Identity{
		UserID:     claims.Subject,
		Email:      claims.Email,
		Role:       claims.Role,
		FacilityID: claims.FacilityID,
	}, nil
}

// TokenFromRequest extracts the access token from the Authorization header,
// falling back to the "token" query parameter for WebSocket clients that
// cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return auth[len("Bearer "):]
	}
	return r.URL.Query().Get("token")
}

// Middleware returns middleware that rejects requests without a valid token
// and attaches the caller identity to the request context.
func (v *Verifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			id, err := v.Verify(tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
		})
	}
}

// NewContext returns a context carrying the identity.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the identity set by Middleware, if present.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok
}
