package users_test

import (
	"encoding/json"
	"testing"

	apperrors "github.com/jrsteele09/fintrack-client/internal/errors"
	"github.com/jrsteele09/fintrack-client/internal/utils"
	"github.com/jrsteele09/fintrack-client/users"
	"github.com/stretchr/testify/require"
)

func TestProfileValidate(t *testing.T) {
	var nilProfile *users.Profile
	require.ErrorIs(t, nilProfile.Validate(), apperrors.ErrInvalidProfile)
	require.ErrorIs(t, (&users.Profile{}).Validate(), apperrors.ErrMissingUserID)
	require.ErrorIs(t, (&users.Profile{UserID: "123"}).Validate(), apperrors.ErrMissingEmail)
	require.ErrorIs(t, (&users.Profile{UserID: " ", Email: "a@b.com"}).Validate(), apperrors.ErrMissingUserID)
	require.NoError(t, (&users.Profile{UserID: "123", Email: "a@b.com"}).Validate())
}

func TestProfileJSON(t *testing.T) {
	var p users.Profile
	err := json.Unmarshal([]byte(`{"userId":"u-1","email":"a@b.com","name":"Ann","createdAt":"2024-01-02T03:04:05Z"}`), &p)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	require.Equal(t, "Ann", utils.Value(p.Name))
	require.Nil(t, p.PhoneNumber)
	require.Equal(t, 2024, p.CreatedAt.Year())
}

func TestProfileDisplayName(t *testing.T) {
	p := &users.Profile{UserID: "u-1", Email: "a@b.com"}
	require.Equal(t, "a@b.com", p.DisplayName())
	p.Name = utils.Ptr("")
	require.Equal(t, "a@b.com", p.DisplayName())
	p.Name = utils.Ptr("Ann")
	require.Equal(t, "Ann", p.DisplayName())
}
