package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role assigned at registration
	RoleUser UserRole = "USER"
	// RoleAdmin can manage other accounts
	RoleAdmin UserRole = "ADMIN"
)

// Provider identifies how an account was created. The set is closed:
// accounts are either local credential accounts or belong to one of the
// supported OAuth providers.
type Provider = string

const (
	ProviderCredentials Provider = "credentials"
	ProviderGitHub      Provider = "github"
	ProviderGoogle      Provider = "google"
)

// KnownProvider reports whether p is one of the supported providers.
func KnownProvider(p Provider) bool {
	switch p {
	case ProviderCredentials, ProviderGitHub, ProviderGoogle:
		return true
	}
	return false
}

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName    string     `bun:"display_name" json:"display_name,omitempty"`
	AvatarURL      string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	Provider       Provider   `bun:"provider,notnull" json:"provider,omitempty"`
	PasswordHash   string     `bun:"password_hash,nullzero" json:"-"`
	EmailVerified  *time.Time `bun:"email_verified,nullzero" json:"email_verified,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsVerified reports whether the user completed email verification.
func (u *User) IsVerified() bool {
	return u.EmailVerified != nil
}

// HasPassword reports whether the account can authenticate with
// credentials. OAuth-only accounts carry no usable password hash.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// MarkVerified stamps the verification time.
func (u *User) MarkVerified(at time.Time) *User {
	u.EmailVerified = &at
	return u
}

// Sanitized returns a projection safe to hand back to clients. The
// password hash never leaves the package boundary.
func (u *User) Sanitized() *User {
	out := *u
	out.PasswordHash = ""
	out.LoginAttempts = 0
	out.LoginAttemptAt = nil
	return &out
}

// Session is one issued access/refresh pair for a user. Multiple rows per
// user are allowed on purpose: each device gets its own session.
type Session struct {
	bun.BaseModel       `bun:"table:sessions,alias:ses"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID              uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	SessionToken        string     `bun:"session_token,notnull,unique" json:"session_token,omitempty"`
	Expires             time.Time  `bun:"expires,notnull" json:"expires,omitempty"`
	RefreshTokenHash    string     `bun:"refresh_token_hash,notnull" json:"-"`
	RefreshTokenExpires time.Time  `bun:"refresh_token_expires,notnull" json:"refresh_token_expires,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AccessExpired reports whether the short-lived access window has passed.
func (s *Session) AccessExpired(now time.Time) bool {
	return now.After(s.Expires)
}

// RefreshExpired reports whether the refresh token may still be redeemed.
func (s *Session) RefreshExpired(now time.Time) bool {
	return now.After(s.RefreshTokenExpires)
}

// VerificationToken is a single-use token proving control of an email
// address. It is deleted on successful verification.
type VerificationToken struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vtk"`
	Token         string     `bun:"token,pk" json:"token,omitempty"`
	Identifier    string     `bun:"identifier,notnull" json:"identifier,omitempty"`
	Expires       time.Time  `bun:"expires,notnull" json:"expires,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the token TTL has passed.
func (v *VerificationToken) Expired(now time.Time) bool {
	return now.After(v.Expires)
}
