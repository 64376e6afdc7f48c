// Package credentials validates and persists the access token, refresh token
// and user profile the client signs requests with.
//
// Writes fail loud: invalid input and medium failures are returned to the
// caller. Reads fail safe: corrupt or unreadable values are deleted, logged
// and reported as absent.
package credentials

import (
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/jrsteele09/fintrack-client/internal/errors"
	"github.com/jrsteele09/fintrack-client/kvstore"
	"github.com/jrsteele09/fintrack-client/users"
	"github.com/rs/zerolog/log"
)

// Storage keys
const (
	KeyCredential        = "auth_token"
	KeyUserProfile       = "auth_user"
	KeyRefreshCredential = "auth_refresh_token"
)

// Store holds the session material of the signed in user. It is constructed
// once per process and shared by the dispatcher and the auth service.
type Store struct {
	repo    kvstore.Repo
	nowTime func() time.Time
}

// Option defines a function type to modify the Store instance.
type Option func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// New returns a Store persisting into repo.
func New(repo kvstore.Repo, options ...Option) (*Store, error) {
	if repo == nil {
		return nil, errors.New("[credentials.New] repo is required")
	}
	s := &Store{
		repo:    repo,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// SetCredential validates and stores the access token.
func (s *Store) SetCredential(token string) error {
	if err := ValidateStructure(token); err != nil {
		return &PersistenceError{What: "credential", Cause: &ValidationError{Field: "token", Err: err}}
	}
	if err := s.write(KeyCredential, token); err != nil {
		return &PersistenceError{What: "credential", Cause: err}
	}
	return nil
}

// Credential returns the stored access token. A structurally invalid value is
// removed and reported as absent.
func (s *Store) Credential() (string, bool) {
	raw, ok := s.read(KeyCredential)
	if !ok {
		return "", false
	}
	if err := ValidateStructure(raw); err != nil {
		log.Warn().Err(err).Str("key", KeyCredential).Msg("removing malformed credential")
		s.remove(KeyCredential)
		return "", false
	}
	return raw, true
}

// SetRefreshCredential stores the opaque refresh token. Failures are logged and
// not returned: losing the refresh token only forces a new sign-in.
func (s *Store) SetRefreshCredential(token string) {
	if token == "" {
		log.Warn().Str("key", KeyRefreshCredential).Msg("ignoring empty refresh credential")
		return
	}
	if err := s.write(KeyRefreshCredential, token); err != nil {
		log.Error().Err(err).Msg("refresh credential not saved")
	}
}

// RefreshCredential returns the stored refresh token.
func (s *Store) RefreshCredential() (string, bool) {
	raw, ok := s.read(KeyRefreshCredential)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

// SetUserProfile validates profile and stores it as JSON.
func (s *Store) SetUserProfile(profile *users.Profile) error {
	if err := profile.Validate(); err != nil {
		return &PersistenceError{What: "user profile", Cause: &ValidationError{Field: "user profile", Err: err}}
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return &PersistenceError{What: "user profile", Cause: &ValidationError{Field: "user profile", Err: err}}
	}
	if err := s.write(KeyUserProfile, string(data)); err != nil {
		return &PersistenceError{What: "user profile", Cause: err}
	}
	return nil
}

// UserProfile returns the stored profile. An undecodable or incomplete profile
// is removed and reported as absent.
func (s *Store) UserProfile() (*users.Profile, bool) {
	raw, ok := s.read(KeyUserProfile)
	if !ok {
		return nil, false
	}
	profile, err := decodeProfile(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", KeyUserProfile).Msg("removing corrupt user profile")
		s.remove(KeyUserProfile)
		return nil, false
	}
	return profile, true
}

// Claims decodes the stored access token.
func (s *Store) Claims() (*Claims, bool) {
	raw, ok := s.Credential()
	if !ok {
		return nil, false
	}
	claims, err := ParseClaims(raw)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// ExpiresAt returns the exp claim of the stored access token.
func (s *Store) ExpiresAt() (time.Time, bool) {
	claims, ok := s.Claims()
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return *claims.ExpiresAt, true
}

// IsAuthenticated reports whether a structurally valid, decodable, unexpired
// access token is stored. An expired or undecodable token clears the whole
// session: corruption cannot be told apart from tampering.
func (s *Store) IsAuthenticated() bool {
	raw, ok := s.Credential()
	if !ok {
		return false
	}
	claims, err := ParseClaims(raw)
	if err != nil {
		log.Warn().Err(err).Msg("credential payload undecodable, clearing session")
		s.ClearAll()
		return false
	}
	if claims.Expired(s.nowTime()) {
		log.Info().Time("exp", *claims.ExpiresAt).Msg("credential expired, clearing session")
		s.ClearAll()
		return false
	}
	return true
}

// State classifies the stored session without modifying it.
func (s *Store) State() SessionState {
	rawToken, hasToken := s.read(KeyCredential)
	rawProfile, hasProfile := s.read(KeyUserProfile)

	if !hasToken {
		if hasProfile {
			if _, err := decodeProfile(rawProfile); err != nil {
				return Corrupt
			}
		}
		return Unauthenticated
	}

	claims, err := ParseClaims(rawToken)
	if err != nil {
		return Corrupt
	}
	if claims.Expired(s.nowTime()) {
		return Expired
	}
	if !hasProfile {
		return Corrupt
	}
	if _, err := decodeProfile(rawProfile); err != nil {
		return Corrupt
	}
	return Authenticated
}

// ClearAll removes every stored session value. It never fails.
func (s *Store) ClearAll() {
	s.remove(KeyCredential)
	s.remove(KeyRefreshCredential)
	s.remove(KeyUserProfile)
}

func (s *Store) ClearCredential() {
	s.remove(KeyCredential)
}

func (s *Store) ClearUserProfile() {
	s.remove(KeyUserProfile)
}

// Repo exposes the underlying medium for collaborators that keep their own
// keys next to the session (e.g. pending OAuth state).
func (s *Store) Repo() kvstore.Repo {
	return s.repo
}

func (s *Store) read(key string) (string, bool) {
	v, ok, err := s.repo.Get(key)
	if err != nil {
		log.Error().Err(&StorageError{Operation: "get", Key: key, Cause: err}).Msg("session read failed, treating as absent")
		return "", false
	}
	return v, ok
}

func (s *Store) write(key, value string) error {
	if err := s.repo.Set(key, value); err != nil {
		return &StorageError{Operation: "set", Key: key, Cause: err}
	}
	return nil
}

func (s *Store) remove(key string) {
	if err := s.repo.Delete(key); err != nil {
		log.Error().Err(&StorageError{Operation: "delete", Key: key, Cause: err}).Msg("session cleanup failed")
	}
}

func decodeProfile(raw string) (*users.Profile, error) {
	var profile *users.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidProfile, "decoding profile: %v", err)
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}
