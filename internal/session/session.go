// Package session carries the caller's network credential through a
// context. Nothing but the transport reads it.
package session

import (
	"context"
	"log/slog"

	"github.com/openmined/syftfiles/internal/utils"
)

type ctxKey struct{}

// Session is an opaque handle to one network connection.
type Session struct {
	Network string
	Token   string
}

func (s *Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("network", s.Network),
		slog.String("token", utils.MaskSecret(s.Token)),
	)
}

// With returns a copy of ctx carrying s.
func With(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From returns the session in ctx, if any.
func From(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// Token returns the credential in ctx or "".
func Token(ctx context.Context) string {
	if s, ok := From(ctx); ok {
		return s.Token
	}
	return ""
}
