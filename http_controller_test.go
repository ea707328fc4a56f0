package authflow_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	authflow "github.com/goliatone/go-auth-flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newControllerApp(t *testing.T, f *engineFixture) *fiber.App {
	t.Helper()

	ctrl, err := authflow.NewController(f.engine, authflow.WithControllerLogger(nopLogger{}))
	require.NoError(t, err)

	app := fiber.New()
	ctrl.Register(app.Group("/api/auth"))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, cookies ...*http.Cookie) (*http.Response, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp, out
}

func sessionCookieFrom(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestController_Flow(t *testing.T) {
	f := newEngineFixture(t, authflow.Options{})
	app := newControllerApp(t, f)

	resp, body := doJSON(t, app, http.MethodPost, "/api/auth/signup",
		`{"email":"ada@example.com","password":"Password1","confirmPassword":"Password1","firstName":"Ada"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "success", body["status"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/auth/signup",
		`{"email":"ada@example.com","password":"Password1","confirmPassword":"Password1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "user_exists", body["code"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/auth/signin",
		`{"email":"ada@example.com","password":"Password2"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "password_mismatch", body["code"])
	assert.Nil(t, sessionCookieFrom(resp, f.cfg.CookieName()))

	resp, body = doJSON(t, app, http.MethodPost, "/api/auth/signin",
		`{"email":"ada@example.com","password":"Password1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "You have successfully signed in.", body["message"])

	cookie := sessionCookieFrom(resp, f.cfg.CookieName())
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	resp, body = doJSON(t, app, http.MethodGet, "/api/auth/session", "", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", data["email"])
	assert.Equal(t, "Ada", data["firstName"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/auth/signout", "", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "You have successfully signed out.", body["message"])
	cleared := sessionCookieFrom(resp, f.cfg.CookieName())
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestController_Unauthenticated(t *testing.T) {
	f := newEngineFixture(t, authflow.Options{})
	app := newControllerApp(t, f)

	resp, body := doJSON(t, app, http.MethodGet, "/api/auth/session", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["code"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/auth/signout", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/signin", body["redirect"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/auth/signin", `{"email":"nobody@example.com","password":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "user_not_found", body["code"])
}

func TestController_BadBody(t *testing.T) {
	f := newEngineFixture(t, authflow.Options{})
	app := newControllerApp(t, f)

	resp, body := doJSON(t, app, http.MethodPost, "/api/auth/signin", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", body["code"])
	assert.Equal(t, "Invalid email or password", body["error"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/auth/signup", `{"email":"bad","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", body["code"])
}

func TestNewController(t *testing.T) {
	_, err := authflow.NewController(nil)
	assert.ErrorIs(t, err, authflow.ErrMissingEngine)

	f := newEngineFixture(t, authflow.Options{})
	ctrl, err := authflow.NewController(f.engine, authflow.WithControllerRoutes(authflow.ControllerRoutes{SignIn: "/login"}))
	require.NoError(t, err)
	assert.Equal(t, "/login", ctrl.Routes.SignIn)
	assert.Equal(t, "/signup", ctrl.Routes.SignUp)
}

func TestController_CustomIdentifier(t *testing.T) {
	f := newEngineFixture(t, authflow.Options{Identifier: "username"})
	app := newControllerApp(t, f)

	resp, body := doJSON(t, app, http.MethodPost, "/api/auth/signup",
		`{"username":"ada","password":"Password1","confirmPassword":"Password1","firstName":"Ada"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = doJSON(t, app, http.MethodPost, "/api/auth/signup",
		`{"fields":{"username":"ada"},"password":"Password1","confirmPassword":"Password1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)

	resp, body = doJSON(t, app, http.MethodPost, "/api/auth/signin",
		`{"username":"ada","password":"Password1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	cookie := sessionCookieFrom(resp, f.cfg.CookieName())
	require.NotNil(t, cookie)

	resp, body = doJSON(t, app, http.MethodGet, "/api/auth/session", "", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada", data["username"])
	assert.Equal(t, "Ada", data["firstName"])
}

func TestController_CustomIdentifierForm(t *testing.T) {
	f := newEngineFixture(t, authflow.Options{Identifier: "username"})
	app := newControllerApp(t, f)

	post := func(path, form string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := post("/api/auth/signup", "username=grace&password=Password1&confirmPassword=Password1")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = post("/api/auth/signin", "username=grace&password=Password1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, sessionCookieFrom(resp, f.cfg.CookieName()))
}
