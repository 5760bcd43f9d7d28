package auth

import (
	"time"

	"github.com/goliatone/go-auth-sessions/middleware/jwtware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// LoginPayload is the minimal surface a credential login request exposes.
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// RouteAuthenticator glues the Authenticator to HTTP concerns: the access
// cookie, the protected-route middleware, and error translation.
type RouteAuthenticator struct {
	auth             Authenticator
	cfg              Config
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultErrHandler

	return a, nil
}

// ProtectedRoute guards a route with access token validation. Validation
// goes through the Authenticator, so externally issued tokens work when a
// custom validator is configured.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler: errorHandler,
		SigningKey: jwtware.SigningKey{
			Key:    []byte(cfg.GetSigningKey()),
			JWTAlg: cfg.GetSigningMethod(),
		},
		AuthScheme:      cfg.GetAuthScheme(),
		ContextKey:      cfg.GetContextKey(),
		TokenLookup:     cfg.GetTokenLookup(),
		TokenValidator:  JWTValidator(TokenValidatorFunc(a.auth.SessionFromToken)),
		ContextEnricher: ContextEnricherAdapter,
	})
}

// Login runs credential sign-in and plants the access cookie. The
// returned pair still carries the refresh token; the response body is the
// only place it ever appears.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (*TokenPair, error) {
	pair, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error", "error", err)
		return nil, err
	}

	a.setCookieToken(ctx, pair.AccessToken, pair.AccessExpires)
	return pair, nil
}

// Refresh rotates the session behind a refresh token and refreshes the
// access cookie with the new artifact.
func (a *RouteAuthenticator) Refresh(ctx router.Context, refreshToken string) (*TokenPair, error) {
	pair, err := a.auth.Refresh(ctx.Context(), refreshToken)
	if err != nil {
		return nil, err
	}

	a.setCookieToken(ctx, pair.AccessToken, pair.AccessExpires)
	return pair, nil
}

// Logout revokes the user's sessions and clears the access cookie.
func (a *RouteAuthenticator) Logout(ctx router.Context, userID string) error {
	if err := a.auth.Logout(ctx.Context(), userID); err != nil {
		return err
	}

	a.cookieDel(ctx, a.cfg.GetContextKey())
	return nil
}

// MakeClientRouteAuthErrorHandler normalizes middleware errors. With
// optional set, requests proceed unauthenticated instead of failing.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.AuthErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, expires time.Time) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return RenderError(c, err)
}

// RenderError writes the JSON error envelope for err using the taxonomy's
// status mapping. Uncategorized errors collapse to a plain 500 so backend
// detail never leaks.
func RenderError(c router.Context, err error) error {
	status := StatusForError(err)

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return c.JSON(status, map[string]any{
			"error": map[string]any{
				"message": "An unexpected server error occurred",
			},
		})
	}

	message := richErr.Message
	if status == router.StatusInternalServerError {
		message = "An unexpected server error occurred"
	}

	body := map[string]any{
		"message": message,
	}
	if richErr.TextCode != "" && status != router.StatusInternalServerError {
		body["text_code"] = richErr.TextCode
	}

	return c.JSON(status, map[string]any{"error": body})
}
