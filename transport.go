package authflow

import (
	"strings"
	"time"
)

const authScheme = "Bearer"

// Cookie is a transport neutral cookie description
type Cookie struct {
	Name     string
	Value    string
	Path     string
	MaxAge   int
	Expires  time.Time
	HTTPOnly bool
	Secure   bool
	SameSite string
}

// RequestContext is the slice of an HTTP exchange the engine needs:
// read a cookie, read a header and queue a cookie on the response.
type RequestContext interface {
	Cookie(name string) string
	Header(name string) string
	SetCookie(cookie *Cookie)
}

// TokenFromRequest returns the session token carried by the request. The
// cookie wins over the Authorization header.
func TokenFromRequest(rc RequestContext, cookieName string) (string, error) {
	if rc == nil {
		return "", ErrUnauthorized
	}

	if token := rc.Cookie(cookieName); token != "" {
		return token, nil
	}

	if token := bearerToken(rc.Header("Authorization")); token != "" {
		return token, nil
	}

	return "", ErrUnauthorized
}

func bearerToken(header string) string {
	l := len(authScheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], authScheme) && header[l] == ' ' {
		return strings.TrimSpace(header[l:])
	}
	return ""
}

func sessionCookie(cfg *Config, token string, now time.Time) *Cookie {
	return &Cookie{
		Name:     cfg.CookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   cfg.MaxAgeSeconds(),
		Expires:  now.Add(cfg.MaxAge()),
		HTTPOnly: true,
		Secure:   cfg.Production(),
		SameSite: "Lax",
	}
}

func clearedCookie(cfg *Config, now time.Time) *Cookie {
	return &Cookie{
		Name:     cfg.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  now.Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   cfg.Production(),
		SameSite: "Lax",
	}
}
