package session

import (
	"context"

	"finance-tracker/internal/models"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session resolved for the current request, or nil
// when the request is anonymous.
func FromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(contextKey{}).(*models.Session)
	return sess
}
