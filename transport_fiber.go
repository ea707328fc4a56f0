package authflow

import "github.com/gofiber/fiber/v2"

type fiberContext struct {
	c *fiber.Ctx
}

// FiberContext adapts a fiber request to RequestContext
func FiberContext(c *fiber.Ctx) RequestContext {
	return fiberContext{c: c}
}

func (f fiberContext) Cookie(name string) string {
	return f.c.Cookies(name)
}

func (f fiberContext) Header(name string) string {
	return f.c.Get(name)
}

func (f fiberContext) SetCookie(cookie *Cookie) {
	f.c.Cookie(&fiber.Cookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Path:     cookie.Path,
		MaxAge:   cookie.MaxAge,
		Expires:  cookie.Expires,
		HTTPOnly: cookie.HTTPOnly,
		Secure:   cookie.Secure,
		SameSite: cookie.SameSite,
	})
}
