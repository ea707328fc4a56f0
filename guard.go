package authflow

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Principal is the authenticated party resolved by the guard. User is nil
// for the edge variant, which trusts the verified claims alone.
type Principal struct {
	User    *User
	Session *Session
	Claims  *Claims
}

// Identifier returns the identifier claim
func (p *Principal) Identifier() string {
	if p == nil || p.Claims == nil {
		return ""
	}
	return p.Claims.Identifier
}

// GuardHandler is invoked for requests the guard lets through. p is nil
// on public and auth entry paths.
type GuardHandler func(c *fiber.Ctx, p *Principal) error

// Action is the outcome of a guard decision
type Action int

const (
	ActionContinue Action = iota
	ActionRedirect
	ActionInvoke
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionRedirect:
		return "redirect"
	case ActionInvoke:
		return "invoke"
	}
	return "unknown"
}

// Decision tells a transport what to do with a request
type Decision struct {
	Action    Action
	Location  string
	Principal *Principal
	Err       error
}

// RouteGuard classifies request paths and decides whether a request may
// proceed. It never writes the session cookie.
type RouteGuard struct {
	cfg      *Config
	users    UserAdapter
	sessions SessionAdapter
	codec    *TokenCodec
	logger   Logger
	now      func() time.Time
	handler  GuardHandler

	public          []string
	unauthenticated []string
	authEntry       []string

	home       string
	errorPage  string
	signInPage string
}

// GuardOption configures a RouteGuard
type GuardOption func(*RouteGuard)

// WithPublicPaths adds paths anyone may visit
func WithPublicPaths(paths ...string) GuardOption {
	return func(g *RouteGuard) {
		g.public = append(g.public, paths...)
	}
}

// WithUnauthenticatedPaths adds paths only anonymous visitors may see,
// authenticated visitors are sent home.
func WithUnauthenticatedPaths(paths ...string) GuardOption {
	return func(g *RouteGuard) {
		g.unauthenticated = append(g.unauthenticated, paths...)
	}
}

// WithHomePage sets where authenticated visitors of anonymous only paths go
func WithHomePage(path string) GuardOption {
	return func(g *RouteGuard) {
		if path != "" {
			g.home = path
		}
	}
}

// WithErrorPage overrides the configured error page
func WithErrorPage(path string) GuardOption {
	return func(g *RouteGuard) {
		if path != "" {
			g.errorPage = path
		}
	}
}

// WithSignInPage overrides the configured sign in page
func WithSignInPage(path string) GuardOption {
	return func(g *RouteGuard) {
		if path != "" {
			g.signInPage = path
		}
	}
}

// WithGuardHandler sets the handler invoked instead of calling next
func WithGuardHandler(h GuardHandler) GuardOption {
	return func(g *RouteGuard) {
		g.handler = h
	}
}

// WithGuardLogger sets the logger
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *RouteGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardClock sets the time source for token and session expiry
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *RouteGuard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewRouteGuard creates a guard that resolves the principal through the
// adapter on every protected request.
func NewRouteGuard(cfg *Config, adapter UserAdapter, opts ...GuardOption) (*RouteGuard, error) {
	if adapter == nil {
		return nil, ErrMissingAdapter
	}
	return newGuard(cfg, adapter, opts)
}

// NewEdgeGuard creates a guard that only verifies the token. It needs no
// storage and suits handlers running close to the edge.
func NewEdgeGuard(cfg *Config, opts ...GuardOption) (*RouteGuard, error) {
	return newGuard(cfg, nil, opts)
}

func newGuard(cfg *Config, adapter UserAdapter, opts []GuardOption) (*RouteGuard, error) {
	if cfg == nil {
		return nil, ErrMissingConfig
	}

	g := &RouteGuard{
		cfg:        cfg,
		users:      adapter,
		logger:     defLogger{},
		now:        time.Now,
		home:       "/",
		errorPage:  cfg.Pages().Error,
		signInPage: cfg.Pages().SignIn,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if adapter != nil {
		sessions, err := sessionAdapterFor(cfg, adapter)
		if err != nil {
			return nil, err
		}
		g.sessions = sessions
	}

	codec, err := NewTokenCodec(cfg.Secret(), WithCodecClock(g.now))
	if err != nil {
		return nil, err
	}
	g.codec = codec

	g.public = append(g.public, g.errorPage)
	g.unauthenticated = append(g.unauthenticated, g.signInPage)
	g.authEntry = append([]string{g.signInPage, cfg.Pages().SignUp}, g.unauthenticated...)

	return g, nil
}

// Decide classifies path and evaluates token, which may be empty.
func (g *RouteGuard) Decide(ctx context.Context, path, token string) Decision {
	if matchAny(g.public, path) {
		return g.proceed(nil)
	}

	principal, err := g.authenticate(ctx, token)
	if err != nil {
		return g.reject(path, err)
	}

	if matchAny(g.unauthenticated, path) {
		return Decision{Action: ActionRedirect, Location: g.home, Principal: principal}
	}

	return g.proceed(principal)
}

func (g *RouteGuard) authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims, err := g.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	if g.users == nil {
		return &Principal{Claims: claims}, nil
	}

	user, session, err := resolvePrincipal(ctx, g.users, g.sessions, token, claims, g.now())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	return &Principal{User: user, Session: session, Claims: claims}, nil
}

func (g *RouteGuard) reject(path string, err error) Decision {
	if matchAny(g.authEntry, path) {
		return g.proceed(nil)
	}

	if IsAuthenticationError(err) {
		g.logger.Debug("guard rejected request", "path", path, "code", string(KindOf(err)))
		return Decision{Action: ActionRedirect, Location: g.signInPage, Err: err}
	}

	g.logger.Error("guard failed to authenticate request", "path", path, "error", err)
	return Decision{Action: ActionRedirect, Location: g.errorPage, Err: err}
}

func (g *RouteGuard) proceed(p *Principal) Decision {
	if g.handler != nil {
		return Decision{Action: ActionInvoke, Principal: p}
	}
	return Decision{Action: ActionContinue, Principal: p}
}

// matchAny reports whether path is one of patterns or nested below one.
// The root pattern only matches itself.
func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if matchPath(p, path) {
			return true
		}
	}
	return false
}

func matchPath(pattern, path string) bool {
	if pattern == "" {
		return false
	}
	if pattern == "/" {
		return path == "/"
	}
	pattern = strings.TrimSuffix(pattern, "/")
	if path == pattern {
		return true
	}
	return strings.HasPrefix(path, pattern+"/")
}
