package authflow

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Middleware returns a fiber handler enforcing the guard. The principal,
// when resolved, is stored in locals and on the user context.
func (g *RouteGuard) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, _ := TokenFromRequest(FiberContext(c), g.cfg.CookieName())

		d := g.Decide(c.UserContext(), c.Path(), token)

		if d.Principal != nil {
			c.Locals(principalLocalsKey, d.Principal)
			c.SetUserContext(WithPrincipal(c.UserContext(), d.Principal))
		}

		switch d.Action {
		case ActionRedirect:
			return c.Redirect(d.Location, redirectStatus(c.Method()))
		case ActionInvoke:
			return g.handler(c, d.Principal)
		default:
			return c.Next()
		}
	}
}

func redirectStatus(method string) int {
	if method == http.MethodGet || method == http.MethodHead {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
