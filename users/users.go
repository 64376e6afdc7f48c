package users

import (
	"strings"
	"time"

	apperrors "github.com/jrsteele09/fintrack-client/internal/errors"
	"github.com/jrsteele09/fintrack-client/internal/utils"
)

// Profile is the canonical user profile returned by GET /users/me and kept in
// the credential store next to the access token.
type Profile struct {
	UserID      string     `json:"userId"`                // Unique identifier for the user, required
	Email       string     `json:"email"`                 // User's email address, required
	Name        *string    `json:"name,omitempty"`        // Display name
	PhoneNumber *string    `json:"phoneNumber,omitempty"` // Contact phone number
	CreatedAt   *time.Time `json:"createdAt,omitempty"`   // When the account was registered
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`   // Last time the profile changed
}

// Validate reports whether p carries the fields every stored profile must
// have. A nil profile is invalid.
func (p *Profile) Validate() error {
	if p == nil {
		return apperrors.ErrInvalidProfile
	}
	if strings.TrimSpace(p.UserID) == "" {
		return apperrors.ErrMissingUserID
	}
	if strings.TrimSpace(p.Email) == "" {
		return apperrors.ErrMissingEmail
	}
	return nil
}

// DisplayName is the name to greet the user with, falling back to the email.
func (p *Profile) DisplayName() string {
	return utils.ValueOr(p.Name, p.Email)
}
