package authflow

import (
	"context"
	"maps"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	msgSignedUp  = "You have successfully signed up. Please sign in."
	msgSignedIn  = "You have successfully signed in."
	msgSignedOut = "You have successfully signed out."

	msgSignUpFailed  = "An error occurred while signing up. Please try again."
	msgSignInFailed  = "An error occurred while signing in. Please try again."
	msgSignOutFailed = "An error occurred while signing out. Please try again."
	msgSessionFailed = "An error occurred while verifying your session."
)

var (
	// ErrMissingConfig is returned by constructors called without a Config
	ErrMissingConfig = goerrors.New("auth config is required", goerrors.CategoryValidation)
	// ErrMissingAdapter is returned by constructors called without an adapter
	ErrMissingAdapter = goerrors.New("user adapter is required", goerrors.CategoryValidation)
	// ErrMissingEngine is returned by transports built without an engine
	ErrMissingEngine = goerrors.New("auth engine is required", goerrors.CategoryValidation)
	// ErrSessionAdapterRequired is returned when the session strategy is
	// configured with an adapter that cannot store sessions
	ErrSessionAdapterRequired = goerrors.New("session strategy requires an adapter implementing SessionAdapter", goerrors.CategoryValidation)
)

// Engine runs the sign up, sign in, sign out and session flows. It holds
// no per request state and is safe for concurrent use.
type Engine struct {
	cfg      *Config
	users    UserAdapter
	sessions SessionAdapter
	codec    *TokenCodec
	hasher   PasswordHasher
	logger   Logger
	now      func() time.Time
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLogger sets the logger, defaults to stdout
func WithLogger(logger Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPasswordHasher replaces the bcrypt hasher
func WithPasswordHasher(hasher PasswordHasher) EngineOption {
	return func(e *Engine) {
		if hasher != nil {
			e.hasher = hasher
		}
	}
}

// WithClock sets the time source for tokens, sessions and cookies
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine. Under StrategySession the adapter must
// implement SessionAdapter.
func NewEngine(cfg *Config, adapter UserAdapter, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		return nil, ErrMissingConfig
	}
	if adapter == nil {
		return nil, ErrMissingAdapter
	}

	e := &Engine{
		cfg:    cfg,
		users:  adapter,
		hasher: NewBcryptHasher(0),
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	sessions, err := sessionAdapterFor(cfg, adapter)
	if err != nil {
		return nil, err
	}
	e.sessions = sessions

	codec, err := NewTokenCodec(cfg.Secret(), WithCodecClock(e.now))
	if err != nil {
		return nil, err
	}
	e.codec = codec

	return e, nil
}

func sessionAdapterFor(cfg *Config, adapter UserAdapter) (SessionAdapter, error) {
	if cfg.Strategy() != StrategySession {
		return nil, nil
	}
	sessions, ok := adapter.(SessionAdapter)
	if !ok {
		return nil, ErrSessionAdapterRequired
	}
	return sessions, nil
}

// Config returns the configuration the engine was built with
func (e *Engine) Config() *Config {
	return e.cfg
}

// SignUp validates the payload and creates a new user. No token is issued.
func (e *Engine) SignUp(ctx context.Context, payload SignUpPayload) Result {
	if err := e.signUp(ctx, payload); err != nil {
		return e.failure("sign up", err, msgSignUpFailed)
	}
	return Result{Status: StatusSuccess, Message: msgSignedUp}
}

func (e *Engine) signUp(ctx context.Context, payload SignUpPayload) error {
	field := e.cfg.Identifier()

	if err := e.cfg.SignUpSchema()(field, payload); err != nil {
		e.logger.Debug("sign up payload rejected", "error", err)
		return ErrInvalidCredentials
	}

	identifier := payload.IdentifierValue(field)

	existing, err := e.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return adapterError(err, "failed to look up user")
	}
	if existing != nil {
		return ErrUserExists
	}

	hash, err := e.hasher.Hash(payload.Password)
	if err != nil {
		return err
	}

	user := &User{
		Email:          payload.Email,
		FirstName:      payload.FirstName,
		LastName:       payload.LastName,
		Image:          payload.Image,
		HashedPassword: hash,
		Fields:         maps.Clone(payload.Fields),
	}

	if _, err := e.users.CreateUser(ctx, user); err != nil {
		return adapterError(err, "failed to create user")
	}

	e.logger.Info("user signed up", "identifier", identifier)
	return nil
}

// SignIn verifies credentials, issues a token and sets the session cookie.
func (e *Engine) SignIn(ctx context.Context, rc RequestContext, payload SignInPayload) Result {
	if err := e.signIn(ctx, rc, payload); err != nil {
		return e.failure("sign in", err, msgSignInFailed)
	}
	return Result{Status: StatusSuccess, Message: msgSignedIn}
}

func (e *Engine) signIn(ctx context.Context, rc RequestContext, payload SignInPayload) error {
	field := e.cfg.Identifier()

	if err := e.cfg.SignInSchema()(field, payload); err != nil {
		e.logger.Debug("sign in payload rejected", "error", err)
		return ErrInvalidCredentials
	}

	identifier := payload.IdentifierValue(field)

	user, err := e.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return adapterError(err, "failed to look up user")
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := e.hasher.Compare(payload.Password, user.HashedPassword); err != nil {
		return err
	}

	pinned := user.IdentifierValue(field)
	if pinned == "" {
		pinned = identifier
	}

	claims := claimsForUser(user, field)
	if cb := e.cfg.Callbacks().JWT; cb != nil {
		cb(user, &claims)
	}
	claims.Identifier = pinned

	now := e.now()

	token, err := e.codec.Encode(claims, e.cfg.MaxAge())
	if err != nil {
		return err
	}

	if e.sessions != nil {
		if _, err := e.sessions.CreateSession(ctx, user, token, now.Add(e.cfg.MaxAge())); err != nil {
			return adapterError(err, "failed to create session")
		}
	}

	rc.SetCookie(sessionCookie(e.cfg, token, now))

	e.logger.Info("user signed in", "identifier", pinned)
	return nil
}

// SignOut revokes the current session and clears the cookie. When the
// request is not authenticated the cookie is cleared anyway and the
// result redirects to the sign in page.
func (e *Engine) SignOut(ctx context.Context, rc RequestContext) Result {
	err := e.signOut(ctx, rc)
	if err == nil {
		return Result{Status: StatusSuccess, Message: msgSignedOut}
	}

	res := e.failure("sign out", err, msgSignOutFailed)
	if res.Code != "" {
		rc.SetCookie(clearedCookie(e.cfg, e.now()))
		res.Redirect = e.cfg.Pages().SignIn
	}
	return res
}

func (e *Engine) signOut(ctx context.Context, rc RequestContext) error {
	token, err := TokenFromRequest(rc, e.cfg.CookieName())
	if err != nil {
		return err
	}

	claims, err := e.codec.Decode(token)
	if err != nil {
		return err
	}

	if e.sessions != nil {
		if err := e.sessions.DestroySession(ctx, token); err != nil {
			return adapterError(err, "failed to destroy session")
		}
	}

	rc.SetCookie(clearedCookie(e.cfg, e.now()))

	e.logger.Info("user signed out", "identifier", claims.Identifier)
	return nil
}

// Session returns the public profile of the authenticated user. Expired
// tokens and sessions clear the cookie.
func (e *Engine) Session(ctx context.Context, rc RequestContext) SessionResult {
	data, err := e.session(ctx, rc)
	if err == nil {
		return SessionResult{Status: StatusSuccess, Data: data}
	}

	res := e.failure("session", err, msgSessionFailed)

	switch res.Code {
	case KindSessionExpired, KindTokenExpired:
		rc.SetCookie(clearedCookie(e.cfg, e.now()))
	}

	return SessionResult{Status: res.Status, Error: res.Error, Code: res.Code}
}

func (e *Engine) session(ctx context.Context, rc RequestContext) (SessionData, error) {
	token, err := TokenFromRequest(rc, e.cfg.CookieName())
	if err != nil {
		return nil, err
	}

	claims, err := e.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	user, session, err := resolvePrincipal(ctx, e.users, e.sessions, token, claims, e.now())
	if err != nil {
		return nil, err
	}

	data := sessionData(user, e.cfg.Identifier())
	if cb := e.cfg.Callbacks().Session; cb != nil {
		if replaced := cb(user, session, data); replaced != nil {
			data = replaced
		}
	}

	return data, nil
}

// resolvePrincipal loads the user behind a verified token. Sessions are
// looked up by token under the session strategy, users by the identifier
// claim otherwise.
func resolvePrincipal(ctx context.Context, users UserAdapter, sessions SessionAdapter, token string, claims *Claims, now time.Time) (*User, *Session, error) {
	if sessions != nil {
		found, err := sessions.GetUserFromSession(ctx, token)
		if err != nil {
			return nil, nil, adapterError(err, "failed to load session")
		}
		if found == nil || found.Session == nil {
			return nil, nil, ErrUnauthorized
		}
		if found.Session.Expired(now) {
			return nil, nil, ErrSessionExpired
		}
		if found.User == nil {
			return nil, nil, ErrUserNotFound
		}
		return found.User, found.Session, nil
	}

	user, err := users.GetUserByIdentifier(ctx, claims.Identifier)
	if err != nil {
		return nil, nil, adapterError(err, "failed to look up user")
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	return user, nil, nil
}

func sessionData(user *User, field string) SessionData {
	data := SessionData{
		"email":     user.Email,
		"firstName": user.FirstName,
		"lastName":  user.LastName,
		"image":     user.Image,
	}
	data[field] = user.IdentifierValue(field)
	return data
}

// failure is the single conversion point from errors to results.
// Authentication errors keep their fixed message, anything else is
// logged and replaced by the operation's generic message.
func (e *Engine) failure(op string, err error, generic string) Result {
	if kind := KindOf(err); kind != "" {
		e.logger.Debug("auth operation rejected", "operation", op, "code", string(kind))
		return Result{Status: StatusError, Error: kind.Message(), Code: kind}
	}

	e.logger.Error("auth operation failed", "operation", op, "error", err)
	return Result{Status: StatusError, Error: generic}
}

// adapterError keeps taxonomy errors reported by adapters and wraps the rest
func adapterError(err error, msg string) error {
	if IsAuthenticationError(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
