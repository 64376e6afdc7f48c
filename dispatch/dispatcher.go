// Package dispatch sends authenticated requests to the fintrack backend.
//
// Every CRUD service calls the backend through a Dispatcher. It attaches the
// stored access token, and on a 401 renews the session once and re-issues the
// request once. When renewal fails the local session is cleared and the caller
// gets a *SessionExpiredError.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/fintrack-client/apimodel"
	"github.com/jrsteele09/fintrack-client/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerRequestID     = "X-Request-ID"
	contentTypeJSON     = "application/json"

	defaultTimeout = 30 * time.Second
)

// CredentialStore is the part of credentials.Store the dispatcher reads and
// writes.
type CredentialStore interface {
	Credential() (string, bool)
	RefreshCredential() (string, bool)
	SetCredential(token string) error
	SetRefreshCredential(token string)
	SetUserProfile(profile *users.Profile) error
	ClearAll()
}

// Renewer exchanges a refresh token for a new access token. It must not touch
// the credential store; the dispatcher persists the result.
type Renewer interface {
	Refresh(ctx context.Context, refreshToken string) (*apimodel.RefreshResponse, error)
}

// SignInRedirect is called after the local session was cleared because it
// could not be renewed. UIs navigate to their sign-in surface from here.
type SignInRedirect func(reason error)

// Options describes one request. Body is sent as is and re-sent on retry.
type Options struct {
	Method string
	Header http.Header
	Body   []byte

	// SkipRenewal returns a 401 untouched, used for calls such as logout
	// where renewing the session would be pointless.
	SkipRenewal bool
}

// Dispatcher attaches credentials to outbound requests and renews the session
// on authentication failure.
type Dispatcher struct {
	baseURL           *url.URL
	client            *http.Client
	store             CredentialStore
	renewer           Renewer
	retryAfterRenewal bool
	signInRedirect    SignInRedirect

	renewals singleflight.Group
}

// Option defines a function type to modify the Dispatcher instance.
type Option func(*Dispatcher)

// WithHTTPClient replaces the default client (30s timeout, cookie jar).
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithRetryAfterRenewal controls whether a request answered with 401 is
// re-issued after a successful renewal (default true). Cookie based
// deployments set false: the renewed cookie is already in the jar and the
// original 401 is handed back to the caller.
func WithRetryAfterRenewal(retry bool) Option {
	return func(d *Dispatcher) {
		d.retryAfterRenewal = retry
	}
}

// WithSignInRedirect sets the hook run after a forced sign-out.
func WithSignInRedirect(redirect SignInRedirect) Option {
	return func(d *Dispatcher) {
		d.signInRedirect = redirect
	}
}

// New returns a Dispatcher resolving relative paths against baseURL.
func New(baseURL string, store CredentialStore, renewer Renewer, options ...Option) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("[dispatch.New] credential store is required")
	}
	if renewer == nil {
		return nil, errors.New("[dispatch.New] renewer is required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("[dispatch.New] invalid base URL %q", baseURL)
	}

	d := &Dispatcher{
		baseURL:           base,
		store:             store,
		renewer:           renewer,
		retryAfterRenewal: true,
		signInRedirect: func(reason error) {
			log.Info().Err(reason).Msg("signed out, sign in required")
		},
	}
	for _, opt := range options {
		opt(d)
	}
	if d.client == nil {
		d.client = NewHTTPClient(defaultTimeout)
	}
	return d, nil
}

// BaseURL returns the URL relative paths are resolved against.
func (d *Dispatcher) BaseURL() string {
	return d.baseURL.String()
}

// Dispatch sends the request described by opts to path.
//
// Non-401 responses are returned unmodified. A 401 is returned as is when no
// refresh token is stored. Otherwise the session is renewed once and, unless
// retries are disabled, the request is re-issued once with the new token; a
// second 401 is not renewed again. The caller closes the response body.
func (d *Dispatcher) Dispatch(ctx context.Context, path string, opts Options) (*http.Response, error) {
	token, _ := d.store.Credential()

	resp, err := d.send(ctx, path, opts, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || opts.SkipRenewal {
		return resp, nil
	}

	if _, ok := d.store.RefreshCredential(); !ok {
		log.Debug().Str("path", path).Msg("401 with no refresh credential")
		return resp, nil
	}

	renewed, err := d.renew(ctx, token)
	if err != nil {
		closeBody(resp)
		if ctx.Err() != nil {
			// The caller gave up, the session itself may still be fine.
			return nil, &NetworkError{Method: methodOf(opts), URL: d.resolve(path), Cause: ctx.Err()}
		}
		if errors.Is(err, errSessionEnded) {
			return nil, &SessionExpiredError{Cause: err}
		}
		d.forceSignOut(err)
		return nil, &SessionExpiredError{Cause: err}
	}

	if !d.retryAfterRenewal {
		return resp, nil
	}
	closeBody(resp)

	retried, err := d.send(ctx, path, opts, renewed)
	if err != nil {
		return nil, err
	}
	if retried.StatusCode == http.StatusUnauthorized {
		d.forceSignOut(&RenewalError{StatusCode: http.StatusUnauthorized, Cause: errors.New("renewed credential rejected")})
	}
	return retried, nil
}

// DispatchJSON encodes in (when non-nil) as the body and decodes a 2xx body
// into out (when non-nil). Non-2xx responses are returned as *StatusError
// together with the response, whose body is already closed.
func (d *Dispatcher) DispatchJSON(ctx context.Context, method, path string, in, out any) (*http.Response, error) {
	opts := Options{Method: method}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		opts.Body = body
	}

	resp, err := d.Dispatch(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return resp, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decoding response body: %w", err)
		}
	}
	return resp, nil
}

func (d *Dispatcher) send(ctx context.Context, path string, opts Options, token string) (*http.Response, error) {
	method := methodOf(opts)
	target := d.resolve(path)

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request %s %s: %w", method, target, err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerAccept, contentTypeJSON)
	req.Header.Set(headerRequestID, uuid.NewString())
	for k, values := range opts.Header {
		key := http.CanonicalHeaderKey(k)
		if key == headerAuthorization {
			continue
		}
		req.Header[key] = append([]string(nil), values...)
	}
	if token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: target, Cause: err}
	}
	log.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Str("request_id", req.Header.Get(headerRequestID)).
		Msg("dispatched")
	return resp, nil
}

func (d *Dispatcher) resolve(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return d.baseURL.String() + strings.TrimLeft(path, "/")
}

func (d *Dispatcher) forceSignOut(reason error) {
	log.Warn().Err(reason).Msg("session could not be renewed, clearing credentials")
	d.store.ClearAll()
	if d.signInRedirect != nil {
		d.signInRedirect(reason)
	}
}

func methodOf(opts Options) string {
	if opts.Method == "" {
		return http.MethodGet
	}
	return opts.Method
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
