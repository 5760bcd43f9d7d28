package google

import "github.com/goliatone/go-auth-sessions/social"

// claimsReply is the OIDC userinfo document. The sub claim is the stable
// account identifier; email_verified comes straight from Google and feeds
// the signup verification decision.
type claimsReply struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

func (c *claimsReply) toProfile() *social.SocialProfile {
	if c == nil {
		return nil
	}

	return &social.SocialProfile{
		ProviderUserID: c.Sub,
		Provider:       "google",
		Email:          c.Email,
		EmailVerified:  c.EmailVerified,
		Name:           c.Name,
		FirstName:      c.GivenName,
		LastName:       c.FamilyName,
		AvatarURL:      c.Picture,
		Raw: map[string]any{
			"sub":            c.Sub,
			"email":          c.Email,
			"email_verified": c.EmailVerified,
			"name":           c.Name,
			"given_name":     c.GivenName,
			"family_name":    c.FamilyName,
			"picture":        c.Picture,
			"locale":         c.Locale,
		},
	}
}
