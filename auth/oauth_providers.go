package auth

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/fintrack-client/internal/config"
	apperrors "github.com/jrsteele09/fintrack-client/internal/errors"
	"github.com/jrsteele09/fintrack-client/kvstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// KeyOAuthState holds the pending provider sign-in between AuthCodeURL and
// CompleteOAuth.
const KeyOAuthState = "auth_oauth_state"

type providerSpec struct {
	endpoint oauth2.Endpoint
	scopes   []string
}

var knownProviders = map[string]providerSpec{
	"google": {endpoint: endpoints.Google, scopes: []string{"openid", "email", "profile"}},
	"github": {endpoint: endpoints.GitHub, scopes: []string{"read:user", "user:email"}},
}

type pendingOAuth struct {
	Provider string `json:"provider"`
	State    string `json:"state"`
}

// OAuthProviders builds provider authorization URLs whose redirect lands on
// the backend's /oauth2/callback/{provider} endpoint.
type OAuthProviders struct {
	repo    kvstore.Repo
	configs map[string]*oauth2.Config
}

// NewOAuthProviders configures every known provider that has a client ID.
func NewOAuthProviders(cfg config.OAuthConfig, baseURL string, repo kvstore.Repo) (*OAuthProviders, error) {
	if repo == nil {
		return nil, errors.New("[NewOAuthProviders] repo is required")
	}
	p := &OAuthProviders{
		repo:    repo,
		configs: make(map[string]*oauth2.Config),
	}
	for name, known := range knownProviders {
		clientID := cfg.GetOAuthClientID(name)
		if clientID == "" {
			continue
		}
		p.configs[name] = &oauth2.Config{
			ClientID:    clientID,
			Endpoint:    known.endpoint,
			RedirectURL: strings.TrimRight(baseURL, "/") + RouteOAuthCallback + name,
			Scopes:      known.scopes,
		}
	}
	return p, nil
}

// Providers lists the configured provider names.
func (p *OAuthProviders) Providers() []string {
	names := make([]string, 0, len(p.configs))
	for name := range p.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AuthCodeURL returns the URL the user visits to sign in with provider. A
// fresh state value is remembered for VerifyState.
func (p *OAuthProviders) AuthCodeURL(provider string) (string, error) {
	c, ok := p.configs[provider]
	if !ok {
		return "", errors.Wrap(apperrors.ErrUnknownProvider, provider)
	}

	pending := pendingOAuth{Provider: provider, State: uuid.NewString()}
	data, err := json.Marshal(pending)
	if err != nil {
		return "", errors.Wrap(err, "[OAuthProviders.AuthCodeURL] encoding state")
	}
	if err := p.repo.Set(KeyOAuthState, string(data)); err != nil {
		return "", errors.Wrap(err, "[OAuthProviders.AuthCodeURL] saving state")
	}
	return c.AuthCodeURL(pending.State, oauth2.AccessTypeOffline), nil
}

// VerifyState checks state against the pending sign-in for provider. The
// pending sign-in is consumed whatever the outcome.
func (p *OAuthProviders) VerifyState(provider, state string) error {
	raw, ok, err := p.repo.Get(KeyOAuthState)
	if err != nil {
		return errors.Wrap(err, "[OAuthProviders.VerifyState] reading state")
	}
	if !ok {
		return apperrors.ErrInvalidState
	}
	if err := p.repo.Delete(KeyOAuthState); err != nil {
		log.Warn().Err(err).Str("key", KeyOAuthState).Msg("pending oauth state not removed")
	}

	var pending pendingOAuth
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return apperrors.ErrInvalidState
	}
	if state == "" || pending.Provider != provider || pending.State != state {
		return apperrors.ErrInvalidState
	}
	return nil
}
