package social

import (
	"net/http"

	auth "github.com/goliatone/go-auth-sessions"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController handles social auth HTTP routes.
type HTTPController struct {
	authenticator *SocialAuthenticator
	config        HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/auth/social")
	PathPrefix string

	// CookieName for the access token cookie (default: "user")
	CookieName string

	// CookieSecure sets the Secure flag on cookies
	CookieSecure bool

	// CookieSameSite sets the SameSite attribute (e.g. "Lax", "Strict", "None")
	CookieSameSite string

	// ErrorHandler renders errors (default: auth.RenderError)
	ErrorHandler func(ctx router.Context, err error) error
}

// NewHTTPController creates a new social auth HTTP controller.
func NewHTTPController(authenticator *SocialAuthenticator, cfg HTTPConfig) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/auth/social"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "user"
	}
	if cfg.CookieSameSite == "" {
		cfg.CookieSameSite = "Lax"
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = auth.RenderError
	}

	return &HTTPController{
		authenticator: authenticator,
		config:        cfg,
	}
}

// RegisterRoutes registers social auth routes. The callback route must be
// registered before the catch-all provider route.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/providers", c.ListProviders)
	group.Get("/:provider/callback", c.Callback)
	group.Get("/:provider", c.BeginAuth)
}

// ListProviders returns available social providers.
func (c *HTTPController) ListProviders(ctx router.Context) error {
	providers := c.authenticator.ListProviders()
	return ctx.JSON(router.StatusOK, map[string]any{
		"providers": providers,
	})
}

// BeginAuth starts the OAuth flow by redirecting to the provider's
// authorization endpoint.
func (c *HTTPController) BeginAuth(ctx router.Context) error {
	providerName := ctx.Param("provider")

	opts := []BeginAuthOption{}
	if redirectURL := ctx.Query("redirect_url"); redirectURL != "" {
		opts = append(opts, WithRedirectURL(redirectURL))
	}

	redirect, err := c.authenticator.BeginAuth(ctx.Context(), providerName, opts...)
	if err != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	return ctx.Redirect(redirect.URL, http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback. On success the access token is
// set as a cookie and the session pair is returned as JSON.
func (c *HTTPController) Callback(ctx router.Context) error {
	providerName := ctx.Param("provider")
	code := ctx.Query("code")
	state := ctx.Query("state")

	// The provider reports user denial and its own failures through
	// error query params rather than a code.
	if errCode := ctx.Query("error"); errCode != "" {
		return ctx.JSON(router.StatusUnauthorized, map[string]any{
			"error": map[string]any{
				"message":   "provider authorization failed",
				"code":      errCode,
				"text_code": TextCodeTokenExchangeFail,
			},
		})
	}

	if code == "" || state == "" {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": "missing code or state parameter",
			},
		})
	}

	result, err := c.authenticator.CompleteAuth(ctx.Context(), providerName, code, state)
	if err != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	c.setAuthCookie(ctx, result.Pair)

	response := map[string]any{
		"token":    result.Pair,
		"new_user": result.IsNewUser,
		"provider": result.Provider,
	}
	if result.RedirectURL != "" {
		response["redirect_url"] = result.RedirectURL
	}

	return ctx.JSON(router.StatusOK, response)
}

func (c *HTTPController) setAuthCookie(ctx router.Context, pair *auth.TokenPair) {
	if pair == nil {
		return
	}

	ctx.Cookie(&router.Cookie{
		Name:     c.config.CookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpires,
		Secure:   c.config.CookieSecure,
		HTTPOnly: true,
		SameSite: c.config.CookieSameSite,
	})
}
