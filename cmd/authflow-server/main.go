package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	authflow "github.com/goliatone/go-auth-flow"
	"github.com/goliatone/go-auth-flow/adapters/bunstore"
	"github.com/goliatone/go-auth-flow/adapters/redisstore"
	"github.com/goliatone/go-auth-flow/internal/serverconfig"
	"github.com/goliatone/go-print"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type App struct {
	config  *serverconfig.Config
	logger  *slog.Logger
	db      *bun.DB
	redis   *redis.Client
	adapter authflow.UserAdapter
	engine  *authflow.Engine
	srv     *fiber.App
}

func main() {
	configPath := flag.String("config", os.Getenv("AUTH_FLOW_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := serverconfig.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: newLogger(cfg.Server.LogLevel),
	}

	if cfg.Server.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(cfg))
		fmt.Println("============")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, app); err != nil {
		app.logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app *App) error {
	defer app.close()

	if err := WithPersistence(ctx, app); err != nil {
		return err
	}

	if err := WithSessionStore(ctx, app); err != nil {
		return err
	}

	if err := WithHTTPServer(app); err != nil {
		return err
	}

	if err := WithAuth(app); err != nil {
		return err
	}

	ProtectedRoutes(app)

	errc := make(chan error, 1)
	go func() {
		app.logger.Info("listening", "addr", app.config.Server.Addr)
		errc <- app.srv.Listen(app.config.Server.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	app.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()
	return app.srv.ShutdownWithContext(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := newDB(app.config.Database, os.Stderr)
	if err != nil {
		return err
	}
	app.db = db

	store := bunstore.New(app.db, bunstore.WithIdentifier(app.config.Auth.Identifier))
	if err := store.CreateSchema(ctx); err != nil {
		return err
	}

	app.adapter = store
	return nil
}

// newDB opens the sqlite database. With Debug set every query is written
// to w.
func newDB(cfg serverconfig.Database, w io.Writer) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.WithWriter(w),
		))
	}
	return db, nil
}

// WithSessionStore moves sessions to redis when it is configured. Users stay
// in the database.
func WithSessionStore(ctx context.Context, app *App) error {
	rc := app.config.Redis
	if !rc.Enabled() {
		return nil
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := app.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", rc.Addr, err)
	}

	opts := []redisstore.Option{redisstore.WithIdentifier(app.config.Auth.Identifier)}
	if rc.Prefix != "" {
		opts = append(opts, redisstore.WithPrefix(rc.Prefix))
	}

	app.adapter = redisstore.New(app.adapter, app.redis, opts...)
	app.logger.Info("sessions stored in redis", "addr", rc.Addr)
	return nil
}

func WithHTTPServer(app *App) error {
	app.srv = fiber.New(fiber.Config{
		AppName:               "authflow",
		DisableStartupMessage: true,
	})
	return nil
}

func WithAuth(app *App) error {
	cfg, err := authflow.NewConfig(app.config.AuthOptions())
	if err != nil {
		return err
	}

	logger := app.logger.With("component", "auth")

	app.engine, err = authflow.NewEngine(cfg, app.adapter, authflow.WithLogger(logger))
	if err != nil {
		return err
	}

	ctrl, err := authflow.NewController(app.engine,
		authflow.WithControllerLogger(logger),
		authflow.WithControllerDebug(app.config.Server.Debug),
	)
	if err != nil {
		return err
	}

	public := append([]string{app.config.Server.APIPath, "/healthz"}, app.config.Guard.Public...)

	guard, err := authflow.NewRouteGuard(cfg, app.adapter,
		authflow.WithPublicPaths(public...),
		authflow.WithUnauthenticatedPaths(app.config.Guard.Unauthenticated...),
		authflow.WithHomePage(app.config.Guard.Home),
		authflow.WithGuardLogger(logger),
	)
	if err != nil {
		return err
	}

	app.srv.Use(guard.Middleware())
	ctrl.Register(app.srv.Group(app.config.Server.APIPath))
	return nil
}

func ProtectedRoutes(app *App) {
	pages := app.engine.Config().Pages()

	app.srv.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.srv.Get(pages.SignIn, func(c *fiber.Ctx) error {
		return c.SendString("sign in at POST " + app.config.Server.APIPath + "/signin")
	})

	app.srv.Get(pages.SignUp, func(c *fiber.Ctx) error {
		return c.SendString("sign up at POST " + app.config.Server.APIPath + "/signup")
	})

	app.srv.Get(pages.Error, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusInternalServerError).SendString("something went wrong")
	})

	app.srv.Get(app.config.Guard.Home, func(c *fiber.Ctx) error {
		p, ok := authflow.GetPrincipal(c)
		if !ok {
			return c.SendString("welcome")
		}
		return c.SendString("welcome back " + p.Identifier())
	})

	app.srv.Get("/me", func(c *fiber.Ctx) error {
		p, ok := authflow.GetPrincipal(c)
		if !ok || p.User == nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.JSON(fiber.Map{
			"id":        p.User.ID,
			"email":     p.User.Email,
			"firstName": p.User.FirstName,
			"lastName":  p.User.LastName,
		})
	})
}

func (a *App) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
