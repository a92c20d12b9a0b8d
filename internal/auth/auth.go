// Package auth resolves the opaque caller identity used to scope conversations.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when no caller identity can be resolved.
var ErrUnauthenticated = errors.New("unauthenticated")

// Provider reports the current caller, if any.
type Provider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Require resolves the caller or fails with ErrUnauthenticated.
func Require(ctx context.Context, p Provider) (string, error) {
	if p == nil {
		return "", ErrUnauthenticated
	}
	userID, ok := p.CurrentUserID(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

type contextKey struct{}

// WithUserID attaches a caller id to ctx. Blank ids are ignored.
func WithUserID(ctx context.Context, userID string) context.Context {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the id stored by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}

// ContextProvider reads the identity placed on the request context.
type ContextProvider struct{}

func (ContextProvider) CurrentUserID(ctx context.Context) (string, bool) {
	return UserIDFromContext(ctx)
}

// Static always reports the same caller. Empty means unauthenticated.
type Static string

func (s Static) CurrentUserID(ctx context.Context) (string, bool) {
	if id, ok := UserIDFromContext(ctx); ok {
		return id, true
	}
	return string(s), s != ""
}

// HeaderMiddleware copies the caller id from header onto the request context.
// Requests without the header pass through unauthenticated.
func HeaderMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID := r.Header.Get(header); userID != "" {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}
