package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/subcommands"
	"github.com/jrsteele09/fintrack-client/auth"
	"github.com/jrsteele09/fintrack-client/credentials"
	"github.com/jrsteele09/fintrack-client/dispatch"
	"github.com/jrsteele09/fintrack-client/internal/config"
	apperrors "github.com/jrsteele09/fintrack-client/internal/errors"
	"github.com/jrsteele09/fintrack-client/kvstore"
	"github.com/jrsteele09/fintrack-client/kvstore/filestore"
	"github.com/jrsteele09/fintrack-client/kvstore/redisstore"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "user-1",
		"exp": 2000000000,
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/authenticate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"userId": "user-1", "email": "ada@example.com", "token": token, "refreshToken": "r-1",
		})
	})
	mux.HandleFunc("GET /api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"userId": "user-1", "email": "ada@example.com", "phoneNumber": "+44 20 7946 0000"})
	})
	mux.HandleFunc("GET /api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"acc-1"}]`))
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, baseURL string) (*app, *bytes.Buffer) {
	t.Helper()
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("GOOGLE_CLIENT_ID", "google-client")
	t.Setenv("GITHUB_CLIENT_ID", "")

	var out bytes.Buffer
	a, err := newApp(config.New(), &out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, &out
}

func execute(t *testing.T, a *app, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet("fintrack", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "fintrack")
	registerCommands(commander)
	require.NoError(t, fs.Parse(args))
	return commander.Execute(context.Background(), a)
}

func TestOpenRepo(t *testing.T) {
	a := &app{}

	t.Setenv("STORAGE_BACKEND", "memory")
	repo, err := a.openRepo(config.New())
	require.NoError(t, err)
	require.IsType(t, &kvstore.InMemoryRepo{}, repo)

	t.Setenv("STORAGE_BACKEND", "file")
	t.Setenv("STORAGE_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("STORAGE_PASSPHRASE", "correct horse")
	repo, err = a.openRepo(config.New())
	require.NoError(t, err)
	require.True(t, repo.(*filestore.Store).Sealed())

	mr := miniredis.RunT(t)
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("REDIS_PREFIX", "cli")
	repo, err = a.openRepo(config.New())
	require.NoError(t, err)
	require.IsType(t, &redisstore.Store{}, repo)
	require.NoError(t, repo.Set("k", "v"))
	require.True(t, mr.Exists("cli:k"))
	require.Len(t, a.closers, 1)
	require.NoError(t, a.Close())

	t.Setenv("STORAGE_BACKEND", "sqlite")
	_, err = a.openRepo(config.New())
	require.ErrorIs(t, err, apperrors.ErrUnsupported)
}

func TestSessionCommands(t *testing.T) {
	srv := backend(t)
	a, out := newTestApp(t, srv.URL+"/api")

	require.Equal(t, subcommands.ExitFailure, execute(t, a, "status"))
	require.Contains(t, out.String(), "Server:   "+srv.URL+"/api/")
	require.Contains(t, out.String(), "Session:  unauthenticated")
	require.NotContains(t, out.String(), "Phone:")

	out.Reset()
	require.Equal(t, subcommands.ExitFailure, execute(t, a, "login", "-email", "ada@example.com", "-password", "wrong"))
	require.Equal(t, credentials.Unauthenticated, a.store.State())

	require.Equal(t, subcommands.ExitSuccess, execute(t, a, "login", "-email", "ada@example.com", "-password", "secret"))
	require.Contains(t, out.String(), "Signed in as ada@example.com")

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(t, a, "status"))
	require.Contains(t, out.String(), "Session:  authenticated")
	require.Contains(t, out.String(), "Renewal:  available")
	require.Contains(t, out.String(), "Phone:    +44 20 7946 0000")

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(t, a, "whoami"))
	require.Contains(t, out.String(), `"userId": "user-1"`)

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(t, a, "get", "-H", "X-Trace: 1", "/accounts"))
	require.Equal(t, `[{"id":"acc-1"}]`, out.String())

	require.Equal(t, subcommands.ExitUsageError, execute(t, a, "get"))
	require.Equal(t, subcommands.ExitUsageError, execute(t, a, "get", "-H", "broken", "/accounts"))

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(t, a, "logout"))
	require.Contains(t, out.String(), "Signed out")
	require.Equal(t, credentials.Unauthenticated, a.store.State())
}

func TestOAuthCommands(t *testing.T) {
	srv := backend(t)
	a, out := newTestApp(t, srv.URL+"/api")

	require.Equal(t, subcommands.ExitSuccess, execute(t, a, "oauth-url", "-provider", "google"))
	require.Contains(t, out.String(), "accounts.google.com")
	require.Contains(t, out.String(), "client_id=google-client")

	require.Equal(t, subcommands.ExitFailure, execute(t, a, "oauth-url", "-provider", "github"))
	require.Equal(t, subcommands.ExitFailure, execute(t, a, "oauth-callback", "-state", "forged", "-code", "c"))
}

func TestDisclosuresCommand(t *testing.T) {
	a, out := newTestApp(t, "http://localhost:1/api")

	require.Equal(t, subcommands.ExitSuccess, execute(t, a, "disclosures"))
	require.Contains(t, out.String(), "In-memory storage is readable")
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth error", &auth.AuthError{Operation: "SignIn", StatusCode: http.StatusUnauthorized, Message: "user ada not found"}, "Invalid email or password."},
		{"session expired", errors.Wrap(&dispatch.SessionExpiredError{Cause: errors.New("refresh token revoked")}, "call"), dispatch.SessionExpiredMessage},
		{"network", &dispatch.NetworkError{Method: "GET", URL: "http://x", Cause: errors.New("refused")}, "Could not reach the server. Check your connection and try again."},
		{"missing credentials", auth.MissingCredentialsErr, auth.MissingCredentialsErr.Error()},
		{"invalid state", errors.Wrap(apperrors.ErrInvalidState, "verify"), "The sign-in link has expired or was already used. Start again with 'oauth-url'."},
		{"other", errors.New("eyJhbGciOi.leaked.token"), "Something went wrong. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, userMessage(tt.err))
		})
	}
}
