package authflow

import "net/http"

// HTTPMiddleware enforces the guard for net/http handlers. The principal
// is available through PrincipalFromContext. GuardHandler is fiber only,
// an Invoke decision calls next here.
func (g *RouteGuard) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := TokenFromRequest(HTTPContext(w, r), g.cfg.CookieName())

		d := g.Decide(r.Context(), r.URL.Path, token)

		if d.Action == ActionRedirect {
			http.Redirect(w, r, d.Location, redirectStatus(r.Method))
			return
		}

		if d.Principal != nil {
			r = r.WithContext(WithPrincipal(r.Context(), d.Principal))
		}
		next.ServeHTTP(w, r)
	})
}
