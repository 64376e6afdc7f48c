package credentials_test

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/fintrack-client/credentials"
	apperrors "github.com/jrsteele09/fintrack-client/internal/errors"
	"github.com/jrsteele09/fintrack-client/internal/utils"
	"github.com/jrsteele09/fintrack-client/kvstore"
	"github.com/jrsteele09/fintrack-client/users"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1_700_000_000, 0)

// failingRepo wraps an in-memory repo and fails the operations switched on.
type failingRepo struct {
	*kvstore.InMemoryRepo
	failGet, failSet, failDelete bool
}

var errMedium = errors.New("quota exceeded")

func (r *failingRepo) Get(key string) (string, bool, error) {
	if r.failGet {
		return "", false, errMedium
	}
	return r.InMemoryRepo.Get(key)
}

func (r *failingRepo) Set(key, value string) error {
	if r.failSet {
		return errMedium
	}
	return r.InMemoryRepo.Set(key, value)
}

func (r *failingRepo) Delete(key string) error {
	if r.failDelete {
		return errMedium
	}
	return r.InMemoryRepo.Delete(key)
}

func newStore(t *testing.T) (*credentials.Store, *failingRepo) {
	t.Helper()
	repo := &failingRepo{InMemoryRepo: kvstore.NewInMemoryRepo()}
	s, err := credentials.New(repo, credentials.WithNowTime(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return s, repo
}

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

// unsignedToken builds a token from literal header and payload JSON.
func unsignedToken(header, payload string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(header)) + "." +
		base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".sig"
}

func validProfile() *users.Profile {
	return &users.Profile{UserID: "123", Email: "a@b.com"}
}

func requireEmpty(t *testing.T, repo kvstore.Repo) {
	t.Helper()
	for _, key := range []string{credentials.KeyCredential, credentials.KeyRefreshCredential, credentials.KeyUserProfile} {
		_, ok, err := repo.Get(key)
		require.NoError(t, err)
		require.False(t, ok, "key %s should be cleared", key)
	}
}

func TestNewRequiresRepo(t *testing.T) {
	_, err := credentials.New(nil)
	require.Error(t, err)
}

func TestCredentialRoundTrip(t *testing.T) {
	s, _ := newStore(t)

	for _, token := range []string{
		"a.b.c",
		"header.payload.signature",
		signedToken(t, jwtlib.MapClaims{"sub": "123"}),
	} {
		require.NoError(t, s.SetCredential(token))
		got, ok := s.Credential()
		require.True(t, ok)
		require.Equal(t, token, got)
	}
}

func TestCredentialStructuralRejection(t *testing.T) {
	for _, token := range []string{"", "invalid.jwt", "not.a.jwt.at.all", "a..c", ".b.c", "a.b."} {
		t.Run(token, func(t *testing.T) {
			s, repo := newStore(t)

			err := s.SetCredential(token)
			require.Error(t, err)

			var persistErr *credentials.PersistenceError
			require.ErrorAs(t, err, &persistErr)
			require.NotEmpty(t, persistErr.UserMessage())
			var validationErr *credentials.ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Equal(t, "token", validationErr.Field)

			// Values planted directly in the medium heal on read.
			require.NoError(t, repo.Set(credentials.KeyCredential, token))
			_, ok := s.Credential()
			require.False(t, ok)
			_, ok, _ = repo.Get(credentials.KeyCredential)
			require.False(t, ok)
		})
	}
}

func TestSetCredentialStorageFailure(t *testing.T) {
	s, repo := newStore(t)
	repo.failSet = true

	err := s.SetCredential("a.b.c")
	var persistErr *credentials.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	var storageErr *credentials.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "set", storageErr.Operation)
	require.ErrorIs(t, err, errMedium)
}

func TestReadFailureIsAbsence(t *testing.T) {
	s, repo := newStore(t)
	require.NoError(t, s.SetCredential("a.b.c"))
	require.NoError(t, s.SetUserProfile(validProfile()))
	repo.failGet = true

	_, ok := s.Credential()
	require.False(t, ok)
	_, ok = s.UserProfile()
	require.False(t, ok)
	_, ok = s.RefreshCredential()
	require.False(t, ok)
	require.False(t, s.IsAuthenticated())
}

func TestRefreshCredential(t *testing.T) {
	s, repo := newStore(t)

	_, ok := s.RefreshCredential()
	require.False(t, ok)

	s.SetRefreshCredential("opaque-refresh")
	got, ok := s.RefreshCredential()
	require.True(t, ok)
	require.Equal(t, "opaque-refresh", got)

	s.SetRefreshCredential("")
	got, _ = s.RefreshCredential()
	require.Equal(t, "opaque-refresh", got)

	// Write failures are swallowed.
	repo.failSet = true
	s.SetRefreshCredential("next")
	got, _ = s.RefreshCredential()
	require.Equal(t, "opaque-refresh", got)
}

func TestUserProfileValidation(t *testing.T) {
	s, _ := newStore(t)

	for _, p := range []*users.Profile{{}, {UserID: "123"}, nil} {
		err := s.SetUserProfile(p)
		var validationErr *credentials.ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.ErrorIs(t, err, apperrors.ErrInvalidProfile)
	}

	profile := validProfile()
	profile.Name = utils.Ptr("Ann")
	require.NoError(t, s.SetUserProfile(profile))
	got, ok := s.UserProfile()
	require.True(t, ok)
	require.Equal(t, profile, got)
}

func TestUserProfileSelfHeals(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":      "{oops",
		"missing id":    `{"email":"a@b.com"}`,
		"missing email": `{"userId":"123"}`,
		"null":          "null",
	} {
		t.Run(name, func(t *testing.T) {
			s, repo := newStore(t)
			require.NoError(t, repo.Set(credentials.KeyUserProfile, raw))

			_, ok := s.UserProfile()
			require.False(t, ok)
			_, ok, _ = repo.Get(credentials.KeyUserProfile)
			require.False(t, ok)
		})
	}
}

func TestIsAuthenticatedExpiry(t *testing.T) {
	t.Run("expired clears everything", func(t *testing.T) {
		s, repo := newStore(t)
		require.NoError(t, s.SetCredential(signedToken(t, jwtlib.MapClaims{"exp": 1000000000})))
		s.SetRefreshCredential("refresh")
		require.NoError(t, s.SetUserProfile(validProfile()))

		require.False(t, s.IsAuthenticated())
		requireEmpty(t, repo)
	})

	t.Run("future expiry", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.SetCredential(signedToken(t, jwtlib.MapClaims{"exp": 2000000000})))
		require.NoError(t, s.SetUserProfile(validProfile()))

		require.True(t, s.IsAuthenticated())
		exp, ok := s.ExpiresAt()
		require.True(t, ok)
		require.Equal(t, int64(2000000000), exp.Unix())
	})

	t.Run("expiring this second", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.SetCredential(signedToken(t, jwtlib.MapClaims{"exp": fixedNow.Unix()})))
		require.True(t, s.IsAuthenticated())
	})

	t.Run("no exp claim", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.SetCredential(signedToken(t, jwtlib.MapClaims{"sub": "123"})))
		require.True(t, s.IsAuthenticated())
		_, ok := s.ExpiresAt()
		require.False(t, ok)
	})

	t.Run("undecodable payload fails closed", func(t *testing.T) {
		s, repo := newStore(t)
		require.NoError(t, s.SetCredential("a.b.c"))
		s.SetRefreshCredential("refresh")
		require.NoError(t, s.SetUserProfile(validProfile()))

		require.False(t, s.IsAuthenticated())
		requireEmpty(t, repo)
	})

	t.Run("non numeric exp fails closed", func(t *testing.T) {
		s, repo := newStore(t)
		require.NoError(t, s.SetCredential(signedToken(t, jwtlib.MapClaims{"exp": "tomorrow"})))

		require.False(t, s.IsAuthenticated())
		requireEmpty(t, repo)
	})

	t.Run("absent", func(t *testing.T) {
		s, _ := newStore(t)
		require.False(t, s.IsAuthenticated())
	})
}

func TestIsAuthenticatedIgnoresHeader(t *testing.T) {
	for name, header := range map[string]string{
		"no alg":      `{"typ":"JWT"}`,
		"unknown alg": `{"alg":"ES256K","typ":"JWT"}`,
		"not json":    `garbage`,
	} {
		t.Run(name, func(t *testing.T) {
			s, repo := newStore(t)
			require.NoError(t, s.SetCredential(unsignedToken(header, `{"exp":2000000000,"sub":"123"}`)))
			s.SetRefreshCredential("refresh")
			require.NoError(t, s.SetUserProfile(validProfile()))

			require.True(t, s.IsAuthenticated())
			require.Equal(t, credentials.Authenticated, s.State())
			_, ok, _ := repo.Get(credentials.KeyRefreshCredential)
			require.True(t, ok)
		})
	}

	t.Run("expired payload still purges", func(t *testing.T) {
		s, repo := newStore(t)
		require.NoError(t, s.SetCredential(unsignedToken(`{"typ":"JWT"}`, `{"exp":1000000000}`)))
		s.SetRefreshCredential("refresh")

		require.False(t, s.IsAuthenticated())
		requireEmpty(t, repo)
	})
}

func TestState(t *testing.T) {
	valid := signedToken(t, jwtlib.MapClaims{"exp": 2000000000})

	t.Run("unauthenticated", func(t *testing.T) {
		s, _ := newStore(t)
		require.Equal(t, credentials.Unauthenticated, s.State())
	})

	t.Run("authenticated", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.SetCredential(valid))
		require.NoError(t, s.SetUserProfile(validProfile()))
		require.Equal(t, credentials.Authenticated, s.State())
	})

	t.Run("expired", func(t *testing.T) {
		s, repo := newStore(t)
		require.NoError(t, s.SetCredential(signedToken(t, jwtlib.MapClaims{"exp": 1000000000})))
		require.NoError(t, s.SetUserProfile(validProfile()))
		require.Equal(t, credentials.Expired, s.State())
		// State never cleans up.
		_, ok, _ := repo.Get(credentials.KeyCredential)
		require.True(t, ok)
	})

	t.Run("corrupt token", func(t *testing.T) {
		s, repo := newStore(t)
		require.NoError(t, repo.Set(credentials.KeyCredential, "invalid.jwt"))
		require.Equal(t, credentials.Corrupt, s.State())
	})

	t.Run("token without profile", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.SetCredential(valid))
		require.Equal(t, credentials.Corrupt, s.State())
	})

	t.Run("corrupt profile", func(t *testing.T) {
		s, repo := newStore(t)
		require.NoError(t, repo.Set(credentials.KeyUserProfile, "{"))
		require.Equal(t, credentials.Corrupt, s.State())
	})

	require.Equal(t, "expired", credentials.Expired.String())
}

func TestClearIsIdempotentAndNeverFails(t *testing.T) {
	s, repo := newStore(t)
	require.NoError(t, s.SetCredential("a.b.c"))
	s.SetRefreshCredential("refresh")
	require.NoError(t, s.SetUserProfile(validProfile()))

	s.ClearCredential()
	s.ClearCredential()
	_, ok := s.Credential()
	require.False(t, ok)

	s.ClearUserProfile()
	_, ok = s.UserProfile()
	require.False(t, ok)

	s.ClearAll()
	s.ClearAll()
	requireEmpty(t, repo)

	repo.failDelete = true
	require.NotPanics(t, s.ClearAll)
}

func TestSecurityDisclosures(t *testing.T) {
	s, _ := newStore(t)
	disclosures := s.SecurityDisclosures()
	require.NotEmpty(t, disclosures)
	for _, d := range disclosures {
		require.NotEmpty(t, d)
	}
}

func TestParseClaims(t *testing.T) {
	claims, err := credentials.ParseClaims(signedToken(t, jwtlib.MapClaims{"sub": "u-1", "exp": 2000000000, "iat": 1000000000}))
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.Subject)
	require.Equal(t, int64(1000000000), claims.IssuedAt.Unix())
	require.False(t, claims.Expired(fixedNow))

	_, err = credentials.ParseClaims("invalid.jwt")
	require.ErrorIs(t, err, apperrors.ErrMalformedToken)
	_, err = credentials.ParseClaims("a.b.c")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	_, err = credentials.ParseClaims(unsignedToken(`{"alg":"none"}`, `null`))
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	_, err = credentials.ParseClaims(unsignedToken(`{"alg":"none"}`, `[1,2]`))
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	claims, err = credentials.ParseClaims(unsignedToken(`{"alg":"ES256K"}`, `{"sub":"u-2","exp":2000000000}`))
	require.NoError(t, err)
	require.Equal(t, "u-2", claims.Subject)
	require.Equal(t, int64(2000000000), claims.ExpiresAt.Unix())
}
