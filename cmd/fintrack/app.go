package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jrsteele09/fintrack-client/auth"
	"github.com/jrsteele09/fintrack-client/credentials"
	"github.com/jrsteele09/fintrack-client/dispatch"
	"github.com/jrsteele09/fintrack-client/internal/config"
	apperrors "github.com/jrsteele09/fintrack-client/internal/errors"
	"github.com/jrsteele09/fintrack-client/kvstore"
	"github.com/jrsteele09/fintrack-client/kvstore/filestore"
	"github.com/jrsteele09/fintrack-client/kvstore/redisstore"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// app is the wired client stack shared by every subcommand.
type app struct {
	cfg       config.Config
	out       io.Writer
	store     *credentials.Store
	service   *auth.Service
	providers *auth.OAuthProviders
	closers   []io.Closer
}

func newApp(cfg config.Config, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, out: out}

	repo, err := a.openRepo(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] opening storage")
	}
	a.store, err = credentials.New(repo)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] credentials.New")
	}

	a.providers, err = auth.NewOAuthProviders(cfg, cfg.GetBaseURL(), repo)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] auth.NewOAuthProviders")
	}

	a.service, err = auth.NewService(cfg.GetBaseURL(), a.store,
		auth.WithHTTPClient(dispatch.NewHTTPClient(cfg.GetHTTPTimeout())),
		auth.WithOAuthProviders(a.providers),
		auth.WithDispatchOptions(
			dispatch.WithRetryAfterRenewal(cfg.GetRetryAfterRenewal()),
			dispatch.WithSignInRedirect(a.signInRequired),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] auth.NewService")
	}
	return a, nil
}

func (a *app) openRepo(cfg config.StorageConfig) (kvstore.Repo, error) {
	switch backend := cfg.GetStorageBackend(); backend {
	case config.StorageMemory:
		return kvstore.NewInMemoryRepo(), nil
	case config.StorageFile:
		return filestore.New(cfg.GetStorageFile(), cfg.GetStoragePassphrase())
	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.GetRedisAddr()})
		a.closers = append(a.closers, rdb)
		return redisstore.New(rdb, cfg.GetRedisPrefix(), redisstore.WithTTL(cfg.GetRedisTTL()))
	default:
		return nil, errors.Wrapf(apperrors.ErrUnsupported, "storage backend %q", backend)
	}
}

func (a *app) signInRequired(reason error) {
	log.Debug().Err(reason).Msg("session cleared")
	fmt.Fprintln(a.out, "Your session has ended. Run 'login' to sign in again.")
}

func (a *app) Close() error {
	var errs []string
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

type userMessager interface {
	UserMessage() string
}

// userMessage turns err into text safe to print. Backend bodies and token
// material never reach the terminal; the full error goes to the debug log.
func userMessage(err error) string {
	log.Debug().Err(err).Msg("command failed")

	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	var expired *dispatch.SessionExpiredError
	if errors.As(err, &expired) {
		return expired.Error()
	}
	var netErr *dispatch.NetworkError
	if errors.As(err, &netErr) {
		return "Could not reach the server. Check your connection and try again."
	}
	switch {
	case errors.Is(err, auth.MissingCredentialsErr),
		errors.Is(err, auth.MissingProviderErr),
		errors.Is(err, auth.MissingCodeErr):
		return err.Error()
	case errors.Is(err, apperrors.ErrUnknownProvider):
		return "That sign-in provider is not configured."
	case errors.Is(err, apperrors.ErrInvalidState):
		return "The sign-in link has expired or was already used. Start again with 'oauth-url'."
	}
	return "Something went wrong. Please try again."
}
