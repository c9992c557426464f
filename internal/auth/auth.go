// Package auth resolves the identity behind a request.
package auth

import (
	"context"

	"github.com/kartikgopal01/coedit/internal/domain"
)

// Token is minimal interface for a verified token that can expose claims.
// It is satisfied by *oidc.IDToken and by test fakes.
type Token interface {
	Claims(v interface{}) error
}

// Verifier checks a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

type callerKey struct{}

// WithCallerID returns a context carrying the authenticated caller.
func WithCallerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// CallerID returns the authenticated caller of ctx or domain.ErrUnauthenticated.
func CallerID(ctx context.Context) (string, error) {
	id, _ := ctx.Value(callerKey{}).(string)
	if id == "" {
		return "", domain.ErrUnauthenticated
	}
	return id, nil
}

// Subject extracts the "sub" claim.
func Subject(claims map[string]interface{}) string {
	sub, _ := claims["sub"].(string)
	return sub
}
