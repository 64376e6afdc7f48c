package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/fintrack-client/apimodel"
	"github.com/jrsteele09/fintrack-client/dispatch"
	apperrors "github.com/jrsteele09/fintrack-client/internal/errors"
	"github.com/jrsteele09/fintrack-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Backend endpoints, relative to the API base URL.
const (
	RouteRegister      = "/auth/register"
	RouteAuthenticate  = "/auth/authenticate"
	RouteRefresh       = "/auth/refresh"
	RouteLogout        = "/auth/logout"
	RouteOAuthCallback = "/oauth2/callback/"
	RouteCurrentUser   = "/users/me"
)

const defaultTimeout = 30 * time.Second

// Session is what a successful sign-in yields. Token and RefreshToken are
// empty in cookie based deployments.
type Session struct {
	User         *users.Profile
	Token        string
	RefreshToken string
}

// SignUpParameters are the fields collected by the registration form.
type SignUpParameters struct {
	Name        string
	Email       string
	PhoneNumber string
	Password    string
}

// Service signs the user in and out, renews the session and owns the
// Dispatcher every other client call goes through.
type Service struct {
	baseURL         string
	client          *http.Client
	store           dispatch.CredentialStore
	dispatcher      *dispatch.Dispatcher
	dispatchOptions []dispatch.Option
	oauth           *OAuthProviders
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithHTTPClient sets the client used for every call, authenticated or not.
// It should carry a cookie jar when the backend uses session cookies.
func WithHTTPClient(client *http.Client) ServiceOption {
	return func(s *Service) {
		s.client = client
	}
}

// WithDispatchOptions passes options through to the Dispatcher.
func WithDispatchOptions(options ...dispatch.Option) ServiceOption {
	return func(s *Service) {
		s.dispatchOptions = append(s.dispatchOptions, options...)
	}
}

// WithOAuthProviders enables CompleteOAuth.
func WithOAuthProviders(providers *OAuthProviders) ServiceOption {
	return func(s *Service) {
		s.oauth = providers
	}
}

// NewService builds the Service and its Dispatcher around store.
func NewService(baseURL string, store dispatch.CredentialStore, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("[NewService] credential store is required")
	}
	if baseURL == "" {
		return nil, errors.New("[NewService] base URL is required")
	}

	s := &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.client == nil {
		s.client = dispatch.NewHTTPClient(defaultTimeout)
	}

	dispatchOptions := append([]dispatch.Option{dispatch.WithHTTPClient(s.client)}, s.dispatchOptions...)
	d, err := dispatch.New(s.baseURL, store, s, dispatchOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "[NewService] dispatch.New")
	}
	s.dispatcher = d
	return s, nil
}

// Dispatcher returns the authenticated request dispatcher for CRUD services.
func (s *Service) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// SignIn authenticates with email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, MissingCredentialsErr
	}
	var resp apimodel.AuthResponse
	if err := s.call(ctx, "SignIn", http.MethodPost, RouteAuthenticate, apimodel.AuthenticateRequest{
		Username: email,
		Password: password,
	}, &resp); err != nil {
		return nil, err
	}
	return s.establish(ctx, "SignIn", &resp)
}

// SignUp registers a new account and signs it in.
func (s *Service) SignUp(ctx context.Context, params SignUpParameters) (*Session, error) {
	if strings.TrimSpace(params.Email) == "" || params.Password == "" {
		return nil, MissingCredentialsErr
	}
	var resp apimodel.AuthResponse
	if err := s.call(ctx, "SignUp", http.MethodPost, RouteRegister, apimodel.RegisterRequest{
		Name:        params.Name,
		Email:       params.Email,
		PhoneNumber: params.PhoneNumber,
		Password:    params.Password,
	}, &resp); err != nil {
		return nil, err
	}
	return s.establish(ctx, "SignUp", &resp)
}

// SignInWithOAuth completes a provider sign-in by handing the authorization
// code to the backend's callback endpoint.
func (s *Service) SignInWithOAuth(ctx context.Context, provider, code string) (*Session, error) {
	if strings.TrimSpace(provider) == "" {
		return nil, MissingProviderErr
	}
	if code == "" {
		return nil, MissingCodeErr
	}
	path := RouteOAuthCallback + url.PathEscape(provider) + "?" + url.Values{"code": {code}}.Encode()

	var resp apimodel.AuthResponse
	if err := s.call(ctx, "SignInWithOAuth", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return s.establish(ctx, "SignInWithOAuth", &resp)
}

// CompleteOAuth checks state against the one issued by AuthCodeURL and then
// signs in with code.
func (s *Service) CompleteOAuth(ctx context.Context, provider, state, code string) (*Session, error) {
	if s.oauth == nil {
		return nil, errors.Wrap(apperrors.ErrUnsupported, "[Service.CompleteOAuth] no oauth providers configured")
	}
	if err := s.oauth.VerifyState(provider, state); err != nil {
		return nil, errors.Wrap(err, "[Service.CompleteOAuth] VerifyState")
	}
	return s.SignInWithOAuth(ctx, provider, code)
}

// Refresh exchanges refreshToken for a new access token. It does not touch the
// credential store and never retries. Failures are *dispatch.RenewalError.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*apimodel.RefreshResponse, error) {
	if refreshToken == "" {
		return nil, &dispatch.RenewalError{Cause: apperrors.ErrEmptyRefreshToken}
	}

	var resp apimodel.RefreshResponse
	err := s.call(ctx, "Refresh", http.MethodPost, RouteRefresh, apimodel.RefreshRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, &dispatch.RenewalError{StatusCode: authErr.StatusCode, Cause: err}
		}
		return nil, &dispatch.RenewalError{Cause: err}
	}
	if resp.Token == "" {
		return nil, &dispatch.RenewalError{Cause: apperrors.ErrInvalidToken}
	}
	return &resp, nil
}

// SignOut tells the backend the session is over and clears the local session.
// The local session is cleared even when the backend cannot be reached.
func (s *Service) SignOut(ctx context.Context) {
	defer s.store.ClearAll()

	resp, err := s.dispatcher.Dispatch(ctx, RouteLogout, dispatch.Options{
		Method:      http.MethodPost,
		SkipRenewal: true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("logout call failed, signing out locally")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Int("status", resp.StatusCode).Msg("logout rejected, signing out locally")
	}
}

// CurrentUser fetches the canonical profile of the signed in user.
func (s *Service) CurrentUser(ctx context.Context) (*users.Profile, error) {
	var profile users.Profile
	_, err := s.dispatcher.DispatchJSON(ctx, http.MethodGet, RouteCurrentUser, nil, &profile)
	if err != nil {
		var statusErr *dispatch.StatusError
		if errors.As(err, &statusErr) {
			return nil, &ProfileFetchError{StatusCode: statusErr.StatusCode, Cause: err}
		}
		var expired *dispatch.SessionExpiredError
		var netErr *dispatch.NetworkError
		if errors.As(err, &expired) || errors.As(err, &netErr) {
			return nil, err
		}
		return nil, &ProfileFetchError{Cause: err}
	}
	if err := profile.Validate(); err != nil {
		return nil, &ProfileFetchError{Cause: err}
	}
	return &profile, nil
}

// establish stores the session material from an auth response, fetches the
// canonical profile and stores it. Any failure leaves no partial session.
func (s *Service) establish(ctx context.Context, op string, resp *apimodel.AuthResponse) (*Session, error) {
	s.store.ClearAll()

	if resp.Token != "" {
		if err := s.store.SetCredential(resp.Token); err != nil {
			return nil, errors.Wrapf(err, "[Service.%s] SetCredential", op)
		}
	}
	if resp.RefreshToken != "" {
		s.store.SetRefreshCredential(resp.RefreshToken)
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		s.store.ClearAll()
		return nil, errors.Wrapf(err, "[Service.%s] CurrentUser", op)
	}
	if err := s.store.SetUserProfile(user); err != nil {
		s.store.ClearAll()
		return nil, errors.Wrapf(err, "[Service.%s] SetUserProfile", op)
	}

	log.Info().Str("user_id", user.UserID).Str("op", op).Msg("signed in")
	return &Session{
		User:         user,
		Token:        resp.Token,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// call performs an unauthenticated JSON round trip. Cookies in the client's
// jar are still sent.
func (s *Service) call(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "[Service.%s] encoding request", op)
		}
		body = bytes.NewReader(data)
	}

	target := s.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.Wrapf(err, "[Service.%s] building request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &dispatch.NetworkError{Method: method, URL: target, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apimodel.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		log.Warn().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("backend_error", apiErr.Error).
			Str("backend_message", apiErr.Message).
			Msg("auth call rejected")
		return &AuthError{Operation: op, StatusCode: resp.StatusCode, Message: apiErr.Message}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "[Service.%s] decoding response", op)
		}
	}
	return nil
}
