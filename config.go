package authflow

import (
	"os"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Strategy selects how logins are tracked
type Strategy string

const (
	// StrategyJWT keeps no server state, the token alone is the session
	StrategyJWT Strategy = "jwt"
	// StrategySession persists a session record per login
	StrategySession Strategy = "session"
)

const (
	DefaultCookieName = "auth_flow.session-token"
	DefaultMaxAge     = 30 * 24 * 60 * 60
	DefaultIdentifier = "email"

	DefaultSignInPage = "/signin"
	DefaultSignUpPage = "/signup"
	DefaultErrorPage  = "/error"

	// DevelopmentSecret is used when no secret is configured. It is
	// rejected in production.
	DevelopmentSecret = "default_secret_used_by_auth_flow"

	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

// Environment variables consulted when Options leave a value empty
const (
	EnvSecret      = "AUTH_FLOW_SECRET"
	EnvSecretAlt   = "JWT_SECRET"
	EnvEnvironment = "AUTH_FLOW_ENV"
)

var absPath = regexp.MustCompile(`^/`)

// Pages are the paths the engine and guard redirect to
type Pages struct {
	SignIn string `json:"signin" yaml:"signin"`
	SignUp string `json:"signup" yaml:"signup"`
	Error  string `json:"error" yaml:"error"`
}

// Validate checks that every page is an absolute path
func (p Pages) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.SignIn, validation.Required, validation.Match(absPath)),
		validation.Field(&p.SignUp, validation.Required, validation.Match(absPath)),
		validation.Field(&p.Error, validation.Required, validation.Match(absPath)),
	)
}

// Options is what the host supplies. Zero values take defaults.
type Options struct {
	Secret       string
	Identifier   string
	Strategy     Strategy
	CookieName   string
	MaxAge       int
	Pages        Pages
	Environment  string
	Callbacks    Callbacks
	SignUpSchema SignUpSchema
	SignInSchema SignInSchema
}

// Validate implements validation.Validatable
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Secret, validation.Required, validation.By(func(value any) error {
			if o.Environment == EnvironmentProduction && value == DevelopmentSecret {
				return goerrors.New("a secret must be configured in production", goerrors.CategoryValidation)
			}
			return nil
		})),
		validation.Field(&o.Identifier, validation.Required),
		validation.Field(&o.Strategy, validation.Required, validation.In(StrategyJWT, StrategySession)),
		validation.Field(&o.CookieName, validation.Required),
		validation.Field(&o.MaxAge, validation.Required, validation.Min(1)),
		validation.Field(&o.Pages),
	)
}

// Config is the resolved, read only engine configuration
type Config struct {
	secret       []byte
	identifier   string
	strategy     Strategy
	cookieName   string
	maxAge       int
	pages        Pages
	environment  string
	callbacks    Callbacks
	signUpSchema SignUpSchema
	signInSchema SignInSchema
}

// NewConfig applies defaults and environment fallbacks to opts and
// validates the result.
func NewConfig(opts Options) (*Config, error) {
	opts = withDefaults(opts)

	if err := opts.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid auth configuration")
	}

	return &Config{
		secret:       []byte(opts.Secret),
		identifier:   opts.Identifier,
		strategy:     opts.Strategy,
		cookieName:   opts.CookieName,
		maxAge:       opts.MaxAge,
		pages:        opts.Pages,
		environment:  opts.Environment,
		callbacks:    opts.Callbacks,
		signUpSchema: opts.SignUpSchema,
		signInSchema: opts.SignInSchema,
	}, nil
}

func withDefaults(opts Options) Options {
	if opts.Secret == "" {
		opts.Secret = firstNonEmpty(os.Getenv(EnvSecret), os.Getenv(EnvSecretAlt), DevelopmentSecret)
	}
	if opts.Environment == "" {
		opts.Environment = firstNonEmpty(os.Getenv(EnvEnvironment), EnvironmentDevelopment)
	}
	if opts.Identifier == "" {
		opts.Identifier = DefaultIdentifier
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyJWT
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Pages.SignIn == "" {
		opts.Pages.SignIn = DefaultSignInPage
	}
	if opts.Pages.SignUp == "" {
		opts.Pages.SignUp = DefaultSignUpPage
	}
	if opts.Pages.Error == "" {
		opts.Pages.Error = DefaultErrorPage
	}
	if opts.SignUpSchema == nil {
		opts.SignUpSchema = DefaultSignUpSchema
	}
	if opts.SignInSchema == nil {
		opts.SignInSchema = DefaultSignInSchema
	}
	return opts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Secret returns a copy of the signing key
func (c *Config) Secret() []byte {
	out := make([]byte, len(c.secret))
	copy(out, c.secret)
	return out
}

func (c *Config) Identifier() string {
	return c.identifier
}

func (c *Config) Strategy() Strategy {
	return c.strategy
}

func (c *Config) CookieName() string {
	return c.cookieName
}

// MaxAge is the lifetime of tokens, sessions and cookies
func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.maxAge) * time.Second
}

func (c *Config) MaxAgeSeconds() int {
	return c.maxAge
}

func (c *Config) Pages() Pages {
	return c.pages
}

func (c *Config) Environment() string {
	return c.environment
}

// Production reports whether cookies should carry the Secure flag
func (c *Config) Production() bool {
	return c.environment == EnvironmentProduction
}

func (c *Config) Callbacks() Callbacks {
	return c.callbacks
}

func (c *Config) SignUpSchema() SignUpSchema {
	return c.signUpSchema
}

func (c *Config) SignInSchema() SignInSchema {
	return c.signInSchema
}
