// Package ctxutil carries small request-scoped values through context.Context,
// the same narrow pattern the teacher's ctxutil package uses for trace data.
package ctxutil

import (
	"context"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
)

type principalKey struct{}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal returns the request's principal and whether one was set; an
// anonymous request (no bearer token) has none, and the caller falls back
// to an IP-keyed principal.
func GetPrincipal(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}
