package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

// HTTPAuthenticator is what the controller needs from the HTTP-facing
// authenticator.
type HTTPAuthenticator interface {
	Middleware
	Login(ctx router.Context, payload LoginPayload) (*TokenPair, error)
	Refresh(ctx router.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx router.Context, userID string) error
	MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

// RegisterAuthRoutes mounts the JSON auth surface on the router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	protected := controller.Auther.ProtectedRoute(
		controller.Config,
		controller.Auther.MakeClientRouteAuthErrorHandler(false),
	)

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("users.create")

	app.Get(controller.Routes.VerifyEmail, controller.VerifyEmail).
		SetName("verify-email.get")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("token-refresh.post")

	app.Post(controller.Routes.Logout, controller.LogOut, protected).
		SetName("sign-out.post")

	app.Get(controller.Routes.Me, controller.Me, protected).
		SetName("me.get")
}

type AuthControllerRoutes struct {
	Register    string
	VerifyEmail string
	Login       string
	Refresh     string
	Logout      string
	Me          string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Config       Config
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	Verification *VerificationFlow
	Registration *RegisterUserHandler
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: RenderError,
		Routes: &AuthControllerRoutes{
			Register:    "/users",
			VerifyEmail: "/verify-email",
			Login:       "/auth/login",
			Refresh:     "/auth/refresh",
			Logout:      "/auth/logout",
			Me:          "/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Config == nil {
		panic("Missing Config in auth controller...")
	}

	if c.Verification == nil {
		c.Verification = NewVerificationFlow(c.Repo)
	}

	if c.Registration == nil {
		c.Registration = NewRegisterUserHandler(c.Repo, c.Verification, nil)
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(a HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithControllerVerification(f *VerificationFlow) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Verification = f
		return c
	}
}

func WithControllerRegistration(h *RegisterUserHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Registration = h
		return c
	}
}

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// RegistrationCreatePayload is the JSON body for POST /users.
type RegistrationCreatePayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, MaxUsernameLength)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, MaxPasswordLength)),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": "failed to parse request body",
			},
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": "validation failed",
				"fields":  FormatValidationErrorToMap(err),
			},
		})
	}

	if a.Debug {
		a.Logger.Debug("registration payload", "payload", print.MaybePrettyJSON(RegistrationCreatePayload{
			Username: payload.Username,
			Email:    payload.Email,
		}))
	}

	res, err := a.Registration.Execute(ctx.Context(), RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		a.Logger.Error("register user execute", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"message": "verification email sent",
		"user":    res.User,
	})
}

func (a *AuthController) VerifyEmail(ctx router.Context) error {
	token := ctx.Query("token")
	if token == "" {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": "missing verification token",
			},
		})
	}

	email, err := a.Verification.Consume(ctx.Context(), token)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"verified": true,
		"email":    email,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": "failed to parse request body",
			},
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": "validation failed",
				"fields":  FormatValidationErrorToMap(err),
			},
		})
	}

	pair, err := a.Auther.Login(ctx, payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

// RefreshRequest carries the refresh token issued at login or by the
// previous rotation.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": "failed to parse request body",
			},
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": "missing refresh token",
			},
		})
	}

	pair, err := a.Auther.Refresh(ctx, payload.RefreshToken)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.Config.GetContextKey())
	if !ok {
		return a.ErrorHandler(ctx, ErrIdentityNotFound)
	}

	if err := a.Auther.Logout(ctx, claims.UserID()); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "signed out",
	})
}

func (a *AuthController) Me(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.Config.GetContextKey())
	if !ok {
		return a.ErrorHandler(ctx, ErrIdentityNotFound)
	}

	user, err := a.Repo.Users().GetByIdentifier(ctx.Context(), claims.UserID())
	if err != nil {
		return a.ErrorHandler(ctx, ErrIdentityNotFound)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": user.Sanitized(),
	})
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
