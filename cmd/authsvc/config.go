package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-sessions"
)

// Config is the env driven service configuration. It satisfies
// auth.Config so it can be handed to the authenticator and the
// protected-route middleware directly.
type Config struct {
	ListenAddr string
	DSN        string
	Debug      bool

	SigningKey      string
	SigningMethod   string
	ContextKey      string
	TokenLookup     string
	AuthScheme      string
	Issuer          string
	Audience        []string
	BaseURL         string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	GithubClientID     string
	GithubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string

	SocialStateKey     string
	SocialHMACKey      string
	SocialAllowSignup  bool
	SocialCallbackPath string
}

var _ auth.Config = (*Config)(nil)

// LoadConfig reads configuration from the environment, applying
// defaults suitable for local development.
func LoadConfig() *Config {
	return &Config{
		ListenAddr: envString("LISTEN_ADDR", ":8572"),
		DSN:        envString("DATABASE_DSN", "file:authsvc.db?cache=shared&mode=rwc"),
		Debug:      envBool("DEBUG", false),

		SigningKey:      envString("AUTH_SIGNING_KEY", ""),
		SigningMethod:   envString("AUTH_SIGNING_METHOD", "HS256"),
		ContextKey:      envString("AUTH_CONTEXT_KEY", "user"),
		TokenLookup:     envString("AUTH_TOKEN_LOOKUP", "header:Authorization,cookie:user"),
		AuthScheme:      envString("AUTH_SCHEME", "Bearer"),
		Issuer:          envString("AUTH_ISSUER", "authsvc"),
		Audience:        envList("AUTH_AUDIENCE", "api"),
		BaseURL:         envString("BASE_URL", "http://localhost:8572"),
		AccessTTL:       envDuration("AUTH_ACCESS_TTL", time.Hour),
		RefreshTTL:      envDuration("AUTH_REFRESH_TTL", 24*time.Hour),
		VerificationTTL: envDuration("AUTH_VERIFICATION_TTL", time.Hour),

		SMTPHost:     envString("SMTP_HOST", ""),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: envString("SMTP_USERNAME", ""),
		SMTPPassword: envString("SMTP_PASSWORD", ""),
		SMTPFrom:     envString("SMTP_FROM", ""),
		SMTPFromName: envString("SMTP_FROM_NAME", "Auth Service"),

		GithubClientID:     envString("GITHUB_CLIENT_ID", ""),
		GithubClientSecret: envString("GITHUB_CLIENT_SECRET", ""),
		GoogleClientID:     envString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: envString("GOOGLE_CLIENT_SECRET", ""),

		SocialStateKey:     envString("SOCIAL_STATE_KEY", ""),
		SocialHMACKey:      envString("SOCIAL_HMAC_KEY", ""),
		SocialAllowSignup:  envBool("SOCIAL_ALLOW_SIGNUP", true),
		SocialCallbackPath: envString("SOCIAL_CALLBACK_PATH", "/auth/social"),
	}
}

func (c *Config) GetSigningKey() string { return c.SigningKey }
func (c *Config) GetSigningMethod() string { return c.SigningMethod }
func (c *Config) GetContextKey() string { return c.ContextKey }
func (c *Config) GetTokenLookup() string { return c.TokenLookup }
func (c *Config) GetAuthScheme() string { return c.AuthScheme }
func (c *Config) GetIssuer() string { return c.Issuer }
func (c *Config) GetAudience() []string { return c.Audience }
func (c *Config) GetBaseURL() string { return c.BaseURL }

func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTTL }
func (c *Config) GetVerificationTokenTTL() time.Duration { return c.VerificationTTL }

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key, def string) []string {
	raw := envString(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
