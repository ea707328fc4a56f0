// Package serverconfig loads settings for the reference auth server from a
// YAML file, expanding environment variables in the file body.
package serverconfig

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	authflow "github.com/goliatone/go-auth-flow"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr     = ":8978"
	DefaultDSN      = "file:auth_flow.db?cache=shared"
	DefaultHomePage = "/"
	DefaultAPIPath  = "/api/auth"
	DefaultLogLevel = "info"
)

var absPrefix = regexp.MustCompile(`^/`)

type Server struct {
	Addr            string        `yaml:"addr"`
	APIPath         string        `yaml:"api_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	Debug           bool          `yaml:"debug"`
}

type Database struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

// Redis enables the redis session store when Addr is set
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

func (r Redis) Enabled() bool {
	return r.Addr != ""
}

type Auth struct {
	Secret      string         `yaml:"secret"`
	Identifier  string         `yaml:"identifier"`
	Strategy    string         `yaml:"strategy"`
	CookieName  string         `yaml:"cookie_name"`
	MaxAge      int            `yaml:"max_age"`
	Environment string         `yaml:"environment"`
	Pages       authflow.Pages `yaml:"pages"`
}

type Guard struct {
	Public          []string `yaml:"public"`
	Unauthenticated []string `yaml:"unauthenticated"`
	Home            string   `yaml:"home"`
}

// Config is the root of the YAML document
type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Auth     Auth     `yaml:"auth"`
	Guard    Guard    `yaml:"guard"`
}

// Load reads a .env file when present, then parses path. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read .env file")
	}

	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		}
		if err := Parse([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid server configuration")
	}
	return cfg, nil
}

// Parse decodes YAML into cfg
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse config")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.APIPath == "" {
		c.Server.APIPath = DefaultAPIPath
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}
	if c.Database.DSN == "" {
		c.Database.DSN = DefaultDSN
	}
	if c.Guard.Home == "" {
		c.Guard.Home = DefaultHomePage
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Addr, validation.Required),
		validation.Field(&c.Server.APIPath, validation.Match(absPrefix)),
		validation.Field(&c.Server.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

// AuthOptions converts the auth section into engine options. Empty values
// fall through to the engine defaults.
func (c *Config) AuthOptions() authflow.Options {
	return authflow.Options{
		Secret:      c.Auth.Secret,
		Identifier:  c.Auth.Identifier,
		Strategy:    authflow.Strategy(c.Auth.Strategy),
		CookieName:  c.Auth.CookieName,
		MaxAge:      c.Auth.MaxAge,
		Environment: c.Auth.Environment,
		Pages:       c.Auth.Pages,
	}
}
