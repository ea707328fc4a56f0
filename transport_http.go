package authflow

import "net/http"

type httpContext struct {
	w http.ResponseWriter
	r *http.Request
}

// HTTPContext adapts a net/http exchange to RequestContext
func HTTPContext(w http.ResponseWriter, r *http.Request) RequestContext {
	return httpContext{w: w, r: r}
}

func (h httpContext) Cookie(name string) string {
	c, err := h.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h httpContext) Header(name string) string {
	return h.r.Header.Get(name)
}

func (h httpContext) SetCookie(cookie *Cookie) {
	http.SetCookie(h.w, &http.Cookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Path:     cookie.Path,
		MaxAge:   cookie.MaxAge,
		Expires:  cookie.Expires,
		HttpOnly: cookie.HTTPOnly,
		Secure:   cookie.Secure,
		SameSite: sameSite(cookie.SameSite),
	})
}

func sameSite(v string) http.SameSite {
	switch v {
	case "Strict", "strict":
		return http.SameSiteStrictMode
	case "None", "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
