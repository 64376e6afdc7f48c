package config

type OAuthConfig interface {
	GetOAuthClientID(provider string) string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

var oauthClientIDVars = map[string]string{
	"google": "GOOGLE_CLIENT_ID",
	"github": "GITHUB_CLIENT_ID",
}

// GetOAuthClientID returns the public client ID registered with provider, or
// "" when the provider is unknown or not configured.
func (OAuth) GetOAuthClientID(provider string) string {
	envVar, ok := oauthClientIDVars[provider]
	if !ok {
		return ""
	}
	return GetEnv(envVar, "")
}
