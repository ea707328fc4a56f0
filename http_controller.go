package authflow

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

// ControllerRoutes are the paths the controller mounts, relative to the
// router it is registered on.
type ControllerRoutes struct {
	SignUp  string
	SignIn  string
	SignOut string
	Session string
}

// Controller exposes the engine as JSON endpoints
type Controller struct {
	Debug  bool
	Logger Logger
	Routes *ControllerRoutes
	Engine *Engine
}

type ControllerOption func(*Controller) *Controller

// WithControllerRoutes overrides the default route paths
func WithControllerRoutes(routes ControllerRoutes) ControllerOption {
	return func(c *Controller) *Controller {
		if routes.SignUp != "" {
			c.Routes.SignUp = routes.SignUp
		}
		if routes.SignIn != "" {
			c.Routes.SignIn = routes.SignIn
		}
		if routes.SignOut != "" {
			c.Routes.SignOut = routes.SignOut
		}
		if routes.Session != "" {
			c.Routes.Session = routes.Session
		}
		return c
	}
}

// WithControllerLogger sets the logger
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerDebug dumps results to stdout
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// NewController creates a controller backed by engine
func NewController(engine *Engine, opts ...ControllerOption) (*Controller, error) {
	if engine == nil {
		return nil, ErrMissingEngine
	}

	c := &Controller{
		Logger: defLogger{},
		Engine: engine,
		Routes: &ControllerRoutes{
			SignUp:  "/signup",
			SignIn:  "/signin",
			SignOut: "/signout",
			Session: "/session",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c, nil
}

// Register mounts the endpoints on r
func (a *Controller) Register(r fiber.Router) {
	r.Post(a.Routes.SignUp, a.SignUp).Name("auth.signup")
	r.Post(a.Routes.SignIn, a.SignIn).Name("auth.signin")
	r.Post(a.Routes.SignOut, a.SignOut).Name("auth.signout")
	r.Get(a.Routes.Session, a.Session).Name("auth.session")
}

func (a *Controller) SignUp(c *fiber.Ctx) error {
	payload := new(SignUpPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.badRequest(c, "sign up", err)
	}
	payload.Fields = a.formIdentifier(c, payload.Fields)

	res := a.Engine.SignUp(c.UserContext(), *payload)
	status := http.StatusCreated
	if !res.OK() {
		status = res.Code.StatusCode()
	}
	return a.respond(c, status, res)
}

func (a *Controller) SignIn(c *fiber.Ctx) error {
	payload := new(SignInPayload)
	if err := c.BodyParser(payload); err != nil {
		return a.badRequest(c, "sign in", err)
	}
	payload.Fields = a.formIdentifier(c, payload.Fields)

	res := a.Engine.SignIn(c.UserContext(), FiberContext(c), *payload)
	return a.respond(c, resultStatus(res.OK(), res.Code), res)
}

func (a *Controller) SignOut(c *fiber.Ctx) error {
	res := a.Engine.SignOut(c.UserContext(), FiberContext(c))
	return a.respond(c, resultStatus(res.OK(), res.Code), res)
}

func (a *Controller) Session(c *fiber.Ctx) error {
	res := a.Engine.Session(c.UserContext(), FiberContext(c))
	return a.respond(c, resultStatus(res.OK(), res.Code), res)
}

// formIdentifier copies a custom identifier posted as a form value into
// fields. JSON bodies already collect it during decoding.
func (a *Controller) formIdentifier(c *fiber.Ctx, fields map[string]any) map[string]any {
	id := a.Engine.Config().Identifier()
	if id == DefaultIdentifier {
		return fields
	}
	if _, ok := fields[id]; ok {
		return fields
	}

	v := c.FormValue(id)
	if v == "" {
		return fields
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields[id] = v
	return fields
}

func (a *Controller) badRequest(c *fiber.Ctx, op string, err error) error {
	a.Logger.Warn("auth request body rejected", "operation", op, "error", err)
	return a.respond(c, http.StatusBadRequest, Result{
		Status: StatusError,
		Error:  KindInvalidCredentials.Message(),
		Code:   KindInvalidCredentials,
	})
}

func (a *Controller) respond(c *fiber.Ctx, status int, body any) error {
	if a.Debug {
		fmt.Println("======= AUTH RESULT ======")
		fmt.Println(print.MaybePrettyJSON(body))
		fmt.Println("==========================")
	}
	return c.Status(status).JSON(body)
}

func resultStatus(ok bool, code ErrorKind) int {
	if ok {
		return http.StatusOK
	}
	return code.StatusCode()
}
