package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-auth-sessions/social"
)

const (
	authorizeEndpoint = "https://github.com/login/oauth/authorize"
	tokenEndpoint     = "https://github.com/login/oauth/access_token"
	userEndpoint      = "https://api.github.com/user"
	emailsEndpoint    = "https://api.github.com/user/emails"

	acceptGitHubJSON = "application/vnd.github.v3+json"
)

// Config configures the GitHub OAuth provider. The endpoint fields exist
// so tests can point the provider at a local server; production wiring
// leaves them empty.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL   string
	TokenURL  string
	UserURL   string
	EmailsURL string

	HTTPClient *http.Client
}

// DefaultScopes covers profile and email access, the minimum this
// service needs to resolve an account.
func DefaultScopes() []string {
	return []string{"user:email", "read:user"}
}

// Provider implements social.SocialProvider against the GitHub OAuth and
// REST APIs.
type Provider struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = authorizeEndpoint
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = tokenEndpoint
	}
	if cfg.UserURL == "" {
		cfg.UserURL = userEndpoint
	}
	if cfg.EmailsURL == "" {
		cfg.EmailsURL = emailsEndpoint
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string {
	return "github"
}

// AuthCodeURL builds the browser redirect target for the authorize leg.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	ac := social.ApplyAuthCodeOptions(p.cfg.Scopes, opts...)
	scopes := ac.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}

	q := url.Values{}
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.CallbackURL)
	q.Set("scope", strings.Join(scopes, " "))
	q.Set("state", state)

	if ac.CodeChallenge != "" {
		q.Set("code_challenge", ac.CodeChallenge)
		if ac.CodeChallengeMethod != "" {
			q.Set("code_challenge_method", ac.CodeChallengeMethod)
		} else {
			q.Set("code_challenge_method", "S256")
		}
	}

	return p.cfg.AuthURL + "?" + q.Encode()
}

// Exchange trades the authorization code for an access token. GitHub
// reports OAuth errors with a 200 status and an error field in the body,
// so both the status and the payload have to be inspected.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...social.ExchangeOption) (*social.Token, error) {
	ec := social.ApplyExchangeOptions(opts...)

	form := url.Values{}
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", p.cfg.CallbackURL)
	if ec.CodeVerifier != "" {
		form.Set("code_verifier", ec.CodeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, body, err := p.do(req)
	if err != nil {
		return nil, err
	}

	var reply tokenReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, newProviderError("exchange", status, "invalid_response", "failed to decode token response", err, nil)
	}

	if status != http.StatusOK || reply.Error != "" {
		return nil, newProviderError("exchange", status, reply.Error, reply.ErrorDesc, nil, reply.details())
	}
	if reply.AccessToken == "" {
		return nil, newProviderError("exchange", status, "missing_access_token", "missing access token", nil, nil)
	}

	return &social.Token{
		AccessToken: reply.AccessToken,
		TokenType:   reply.TokenType,
		Scopes:      parseScopeList(reply.Scope),
	}, nil
}

// UserInfo resolves the account profile plus the primary email. GitHub
// keeps email private on the user endpoint for most accounts, so the
// dedicated emails endpoint is authoritative; its failure falls back to
// whatever the public profile carries.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.SocialProfile, error) {
	account, err := p.fetchAccount(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	email, verified, err := p.fetchEmail(ctx, token.AccessToken)
	if err != nil {
		email, verified = account.Email, false
	}

	return account.toProfile(email, verified), nil
}

func (p *Provider) fetchAccount(ctx context.Context, accessToken string) (*accountReply, error) {
	status, body, err := p.getJSON(ctx, p.cfg.UserURL, accessToken)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, newProviderError("user_info", status, "", restErrorMessage(body), nil, nil)
	}

	account := &accountReply{}
	if err := json.Unmarshal(body, account); err != nil {
		return nil, newProviderError("user_info", status, "invalid_response", "failed to decode user response", err, nil)
	}

	return account, nil
}

func (p *Provider) fetchEmail(ctx context.Context, accessToken string) (string, bool, error) {
	status, body, err := p.getJSON(ctx, p.cfg.EmailsURL, accessToken)
	if err != nil {
		return "", false, err
	}

	if status != http.StatusOK {
		return "", false, newProviderError("emails", status, "", restErrorMessage(body), nil, nil)
	}

	var entries []emailReply
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", false, newProviderError("emails", status, "invalid_response", "failed to decode emails response", err, nil)
	}

	if best := pickEmail(entries); best != nil {
		return best.Email, best.Verified, nil
	}

	return "", false, newProviderError("emails", status, "email_not_found", "no valid email found", nil, nil)
}

// pickEmail prefers the primary address and falls back to any verified
// one. Unverified non-primary addresses never win.
func pickEmail(entries []emailReply) *emailReply {
	var verified *emailReply
	for i := range entries {
		if entries[i].Primary {
			return &entries[i]
		}
		if verified == nil && entries[i].Verified {
			verified = &entries[i]
		}
	}
	return verified
}

func (p *Provider) getJSON(ctx context.Context, endpoint, accessToken string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", acceptGitHubJSON)

	return p.do(req)
}

func (p *Provider) do(req *http.Request) (int, []byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, body, nil
}

type tokenReply struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
	ErrorURI    string `json:"error_uri"`
}

func (r tokenReply) details() map[string]any {
	meta := map[string]any{}
	for k, v := range map[string]string{
		"error":             r.Error,
		"error_description": r.ErrorDesc,
		"error_uri":         r.ErrorURI,
		"scope":             r.Scope,
	} {
		if v != "" {
			meta[k] = v
		}
	}
	return meta
}

// restErrorMessage digs the human message out of a GitHub REST error
// body, falling back to the raw body text.
func restErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}

	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}

	return "github request failed"
}

// parseScopeList splits GitHub's comma separated scope string.
func parseScopeList(raw string) []string {
	if raw == "" {
		return nil
	}

	var scopes []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			scopes = append(scopes, s)
		}
	}

	return scopes
}

func newProviderError(operation string, status int, code, description string, err error, raw map[string]any) *social.ProviderError {
	return &social.ProviderError{
		Provider:    "github",
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
		Raw:         raw,
	}
}
