package config

import (
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleOAuth builds the Google sign-in config.
// Returns nil when GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET is unset, which
// disables the /auth/google routes.
func (c *Config) GoogleOAuth() *oauth2.Config {
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return nil
	}

	return &oauth2.Config{
		ClientID:     c.GoogleClientID,
		ClientSecret: c.GoogleClientSecret,
		RedirectURL:  strings.TrimSuffix(c.APIBaseURL, "/") + "/api/v1/auth/google/callback",
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}
}
