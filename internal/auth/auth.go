// Package auth verifies bearer tokens and carries the resulting caller
// through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"outreach/internal/authz"
)

type ctxKey struct{}

// Claims is the token payload: the standard subject plus a role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errMissingSubject = errors.New("token has no subject")

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses token and returns the caller it identifies.
func (v *Verifier) Verify(token string) (authz.Caller, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return authz.Caller{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return authz.Caller{}, errMissingSubject
	}
	return authz.Caller{UserID: claims.Subject, Role: authz.Role(claims.Role)}, nil
}

// Sign issues an HS256 token for caller that expires after ttl.
func Sign(secret string, caller authz.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(caller.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Middleware attaches the caller of a valid bearer token to the request
// context. Requests without a token pass through anonymously; requests
// with an invalid token are rejected.
func (v *Verifier) Middleware(onReject func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				onReject(w, r, errors.New("authorization header is not a bearer token"))
				return
			}
			caller, err := v.Verify(strings.TrimSpace(token))
			if err != nil {
				onReject(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// WithCaller stores caller in ctx.
func WithCaller(ctx context.Context, caller authz.Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, caller)
}

// CallerFromContext returns the caller in ctx, or the anonymous caller.
func CallerFromContext(ctx context.Context) authz.Caller {
	caller, _ := ctx.Value(ctxKey{}).(authz.Caller)
	return caller
}
