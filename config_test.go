package authflow_test

import (
	"testing"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearAuthEnv(t *testing.T) {
	t.Helper()
	t.Setenv(authflow.EnvSecret, "")
	t.Setenv(authflow.EnvSecretAlt, "")
	t.Setenv(authflow.EnvEnvironment, "")
}

func TestNewConfig_Defaults(t *testing.T) {
	clearAuthEnv(t)

	cfg, err := authflow.NewConfig(authflow.Options{})
	require.NoError(t, err)

	assert.Equal(t, []byte(authflow.DevelopmentSecret), cfg.Secret())
	assert.Equal(t, "email", cfg.Identifier())
	assert.Equal(t, authflow.StrategyJWT, cfg.Strategy())
	assert.Equal(t, "auth_flow.session-token", cfg.CookieName())
	assert.Equal(t, 2592000, cfg.MaxAgeSeconds())
	assert.Equal(t, 30*24*time.Hour, cfg.MaxAge())
	assert.Equal(t, authflow.Pages{SignIn: "/signin", SignUp: "/signup", Error: "/error"}, cfg.Pages())
	assert.Equal(t, "development", cfg.Environment())
	assert.False(t, cfg.Production())
	assert.NotNil(t, cfg.SignUpSchema())
	assert.NotNil(t, cfg.SignInSchema())
}

func TestNewConfig_SecretFallbacks(t *testing.T) {
	clearAuthEnv(t)
	t.Setenv(authflow.EnvSecretAlt, "from-jwt-secret")

	cfg, err := authflow.NewConfig(authflow.Options{})
	require.NoError(t, err)
	assert.Equal(t, []byte("from-jwt-secret"), cfg.Secret())

	t.Setenv(authflow.EnvSecret, "from-auth-flow")
	cfg, err = authflow.NewConfig(authflow.Options{})
	require.NoError(t, err)
	assert.Equal(t, []byte("from-auth-flow"), cfg.Secret())

	cfg, err = authflow.NewConfig(authflow.Options{Secret: "explicit"})
	require.NoError(t, err)
	assert.Equal(t, []byte("explicit"), cfg.Secret())
}

func TestNewConfig_SecretIsCopied(t *testing.T) {
	cfg, err := authflow.NewConfig(authflow.Options{Secret: "abc"})
	require.NoError(t, err)

	s := cfg.Secret()
	s[0] = 'z'
	assert.Equal(t, []byte("abc"), cfg.Secret())
}

func TestNewConfig_Production(t *testing.T) {
	clearAuthEnv(t)

	_, err := authflow.NewConfig(authflow.Options{Environment: "production"})
	assert.Error(t, err)

	t.Setenv(authflow.EnvEnvironment, "production")
	_, err = authflow.NewConfig(authflow.Options{})
	assert.Error(t, err)

	cfg, err := authflow.NewConfig(authflow.Options{Secret: "prod-secret"})
	require.NoError(t, err)
	assert.True(t, cfg.Production())
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts authflow.Options
	}{
		{name: "Unknown strategy", opts: authflow.Options{Secret: "s", Strategy: "cookie"}},
		{name: "Negative max age", opts: authflow.Options{Secret: "s", MaxAge: -1}},
		{name: "Relative page", opts: authflow.Options{Secret: "s", Pages: authflow.Pages{SignIn: "login"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := authflow.NewConfig(tt.opts)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestNewConfig_PartialPages(t *testing.T) {
	cfg, err := authflow.NewConfig(authflow.Options{
		Secret: "s",
		Pages:  authflow.Pages{SignIn: "/login"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/login", cfg.Pages().SignIn)
	assert.Equal(t, "/signup", cfg.Pages().SignUp)
	assert.Equal(t, "/error", cfg.Pages().Error)
}
