package github

import (
	"strconv"

	"github.com/goliatone/go-auth-sessions/social"
)

type accountReply struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
	Company   string `json:"company"`
	Blog      string `json:"blog"`
	Location  string `json:"location"`
	Bio       string `json:"bio"`
}

type emailReply struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// toProfile normalizes the GitHub account into the provider-agnostic
// profile. The email comes from the emails endpoint, not the account
// payload, because GitHub hides private addresses on the latter.
func (a *accountReply) toProfile(email string, emailVerified bool) *social.SocialProfile {
	if a == nil {
		return nil
	}

	return &social.SocialProfile{
		ProviderUserID: strconv.FormatInt(a.ID, 10),
		Provider:       "github",
		Email:          email,
		EmailVerified:  emailVerified,
		Name:           a.Name,
		Username:       a.Login,
		AvatarURL:      a.AvatarURL,
		ProfileURL:     a.HTMLURL,
		Raw: map[string]any{
			"id":         a.ID,
			"login":      a.Login,
			"name":       a.Name,
			"email":      email,
			"avatar_url": a.AvatarURL,
			"html_url":   a.HTMLURL,
			"company":    a.Company,
			"blog":       a.Blog,
			"location":   a.Location,
			"bio":        a.Bio,
		},
	}
}
