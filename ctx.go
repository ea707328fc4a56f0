package authflow

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var principalCtxKey = &contextKey{"principal"}

const principalLocalsKey = "auth_flow.principal"

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok && raw != nil
}

// UserFromContext returns the resolved user, nil for edge guards
func UserFromContext(ctx context.Context) (*User, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.User == nil {
		return nil, false
	}
	return p.User, true
}

// GetPrincipal extracts the principal stored by the guard middleware
func GetPrincipal(c *fiber.Ctx) (*Principal, bool) {
	raw := c.Locals(principalLocalsKey)
	if raw == nil {
		return nil, false
	}
	p, ok := raw.(*Principal)
	return p, ok
}
