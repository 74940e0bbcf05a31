package api

import (
	"context"

	"github.com/org/barrel/internal/auth"
)

type contextKey string

const (
	ctxKeyPrincipal       contextKey = "principal"
	ctxKeyPrincipalHolder contextKey = "principal_holder"
	ctxKeyRequestID       contextKey = "request_id"
)

// principalHolder lets an outer middleware observe the principal that inner
// middleware or a handler attaches on a derived context. Context values only
// flow inward, so the audit layer seeds a holder and reads it after the
// chain returns.
type principalHolder struct {
	p *auth.Principal
}

func withPrincipalHolder(ctx context.Context) (context.Context, *principalHolder) {
	h := &principalHolder{}
	return context.WithValue(ctx, ctxKeyPrincipalHolder, h), h
}

func fillPrincipalHolder(ctx context.Context, p *auth.Principal) {
	if h, _ := ctx.Value(ctxKeyPrincipalHolder).(*principalHolder); h != nil {
		h.p = p
	}
}

func withPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	fillPrincipalHolder(ctx, p)
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

func principalFromCtx(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(ctxKeyPrincipal).(*auth.Principal)
	return p
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func requestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
