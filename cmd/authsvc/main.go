package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-auth-sessions"
	"github.com/goliatone/go-auth-sessions/social"
	"github.com/goliatone/go-auth-sessions/social/providers/github"
	"github.com/goliatone/go-auth-sessions/social/providers/google"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config *Config
	bunDB  *bun.DB
	repo   auth.RepositoryManager
	auth   *auth.Auther
	auther auth.HTTPAuthenticator
	mailer auth.Mailer
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	_ = godotenv.Load()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("authsvc"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := LoadConfig()
	if cfg.SigningKey == "" {
		lgr.Error("AUTH_SIGNING_KEY is required")
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		lgr.Error("persistence setup failed", "error", err)
		os.Exit(1)
	}

	WithMailer(app)

	if err := WithHTTPServer(app); err != nil {
		lgr.Error("http server setup failed", "error", err)
		os.Exit(1)
	}

	if err := WithHTTPAuth(app); err != nil {
		lgr.Error("auth setup failed", "error", err)
		os.Exit(1)
	}

	if err := WithSocialAuth(app); err != nil {
		lgr.Error("social auth setup failed", "error", err)
		os.Exit(1)
	}

	app.srv.Serve(cfg.ListenAddr)

	lgr.Info("listening", "addr", cfg.ListenAddr)

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.DSN)
	if err != nil {
		return err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	models := []any{
		(*auth.User)(nil),
		(*auth.Session)(nil),
		(*auth.VerificationToken)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	app.bunDB = db
	app.repo = repo

	return nil
}

func WithMailer(app *App) {
	cfg := app.config

	if cfg.SMTPHost == "" {
		app.mailer = auth.NewLogMailer(cfg.BaseURL, app.GetLogger("mail"))
		return
	}

	mailer := auth.NewSMTPMailer(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUsername,
		cfg.SMTPPassword,
		cfg.SMTPFrom,
		cfg.BaseURL,
	)
	mailer.FromName = cfg.SMTPFromName
	mailer.WithLogger(app.GetLogger("mail"))

	app.mailer = mailer
}

func WithHTTPServer(app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.config.Debug,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	app.srv = srv
	return nil
}

type userTrackerAdapter struct {
	users auth.Users
}

func (a userTrackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a userTrackerAdapter) TrackAttemptedLogin(ctx context.Context, user *auth.User) error {
	return a.users.TrackAttemptedLogin(ctx, user)
}

func (a userTrackerAdapter) TrackSucccessfulLogin(ctx context.Context, user *auth.User) error {
	return a.users.TrackSucccessfulLogin(ctx, user)
}

func WithHTTPAuth(app *App) error {
	cfg := app.config

	userProvider := auth.NewUserProvider(userTrackerAdapter{users: app.repo.Users()})
	userProvider.WithLogger(app.GetLogger("auth:prv"))

	sessions, err := auth.NewSessionManager(
		app.repo,
		cfg.GetAccessTokenTTL(),
		cfg.GetRefreshTokenTTL(),
		auth.WithSessionLogger(app.GetLogger("auth:ses")),
	)
	if err != nil {
		return err
	}

	authenticator := auth.NewAuthenticator(userProvider, sessions, cfg)
	authenticator.WithLogger(app.GetLogger("auth:authz"))
	app.auth = authenticator

	httpAuth, err := auth.NewHTTPAuthenticator(authenticator, cfg)
	if err != nil {
		return err
	}
	httpAuth.Logger = app.GetLogger("auth:http")
	app.auther = httpAuth

	verification := auth.NewVerificationFlow(app.repo,
		auth.WithVerificationTTL(cfg.GetVerificationTokenTTL()),
		auth.WithVerificationLogger(app.GetLogger("auth:verify")),
	)

	registration := auth.NewRegisterUserHandler(app.repo, verification, app.mailer)
	registration.WithLogger(app.GetLogger("auth:reg"))

	auth.RegisterAuthRoutes(app.srv.Router().Group("/"),
		auth.WithControllerRepo(app.repo),
		auth.WithControllerAuther(httpAuth),
		auth.WithControllerConfig(cfg),
		auth.WithControllerVerification(verification),
		auth.WithControllerRegistration(registration),
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
		auth.WithControllerDebug(cfg.Debug),
	)

	return nil
}

func WithSocialAuth(app *App) error {
	cfg := app.config

	if cfg.GithubClientID == "" && cfg.GoogleClientID == "" {
		app.GetLogger("social").Info("no social providers configured")
		return nil
	}

	opts := []social.SocialAuthOption{
		social.WithMailer(app.mailer),
		social.WithLogger(app.GetLogger("social")),
	}

	callbackBase := cfg.BaseURL + cfg.SocialCallbackPath

	if cfg.GithubClientID != "" {
		opts = append(opts, social.WithProvider(github.New(github.Config{
			ClientID:     cfg.GithubClientID,
			ClientSecret: cfg.GithubClientSecret,
			CallbackURL:  callbackBase + "/github/callback",
		})))
	}

	if cfg.GoogleClientID != "" {
		opts = append(opts, social.WithProvider(google.New(google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			CallbackURL:  callbackBase + "/google/callback",
		})))
	}

	socialAuth := social.NewSocialAuthenticator(app.repo, app.auth, social.SocialAuthConfig{
		BaseURL:            cfg.BaseURL,
		CallbackPath:       cfg.SocialCallbackPath,
		StateEncryptionKey: []byte(cfg.SocialStateKey),
		StateHMACKey:       []byte(cfg.SocialHMACKey),
		AllowSignup:        cfg.SocialAllowSignup,
	}, opts...)

	controller := social.NewHTTPController(socialAuth, social.HTTPConfig{
		PathPrefix: cfg.SocialCallbackPath,
		CookieName: cfg.GetContextKey(),
	})

	controller.RegisterRoutes(app.srv.Router().Group(cfg.SocialCallbackPath))

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
