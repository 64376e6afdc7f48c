package credentials

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/fintrack-client/internal/errors"
)

// Claims is the decoded payload of an access token. The signature is not
// verified here, that is the backend's job; the client only needs the expiry.
type Claims struct {
	Subject   string
	ExpiresAt *time.Time // nil when the token carries no exp claim
	IssuedAt  *time.Time
	Raw       jwtlib.MapClaims
}

// Expired reports whether the exp claim lies before now. Whole seconds are
// compared, a token expiring this very second is still valid.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Unix() < now.Unix()
}

// ValidateStructure checks that raw splits into exactly three non-empty
// dot separated segments.
func ValidateStructure(raw string) error {
	if raw == "" {
		return apperrors.ErrEmptyToken
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return apperrors.ErrMalformedToken
	}
	for _, p := range parts {
		if p == "" {
			return apperrors.ErrMalformedToken
		}
	}
	return nil
}

// ParseClaims decodes the payload segment of raw. Neither the header nor the
// signature is looked at: a token signed with an algorithm golang-jwt does
// not know is still a usable credential.
func ParseClaims(raw string) (*Claims, error) {
	if err := ValidateStructure(raw); err != nil {
		return nil, err
	}

	payload, err := jwtlib.NewParser().DecodeSegment(strings.Split(raw, ".")[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", apperrors.ErrInvalidToken, err)
	}
	var mapClaims jwtlib.MapClaims
	if err := json.Unmarshal(payload, &mapClaims); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", apperrors.ErrInvalidToken, err)
	}
	if mapClaims == nil {
		return nil, fmt.Errorf("%w: payload is not an object", apperrors.ErrInvalidToken)
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: exp: %v", apperrors.ErrInvalidToken, err)
	}
	iat, err := mapClaims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("%w: iat: %v", apperrors.ErrInvalidToken, err)
	}
	sub, _ := mapClaims.GetSubject()

	claims := &Claims{Subject: sub, Raw: mapClaims}
	if exp != nil {
		t := exp.Time
		claims.ExpiresAt = &t
	}
	if iat != nil {
		t := iat.Time
		claims.IssuedAt = &t
	}
	return claims, nil
}
