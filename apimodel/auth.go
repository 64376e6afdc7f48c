// Package apimodel holds the JSON bodies exchanged with the fintrack backend's
// auth endpoints.
package apimodel

import "github.com/jrsteele09/fintrack-client/users"

// AuthenticateRequest is the body of POST /auth/authenticate.
// The backend names the email field "username".
type AuthenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Password    string `json:"password"`
}

// AuthResponse is returned by /auth/authenticate, /auth/register and
// /oauth2/callback/{provider}. The body is the user profile; session material
// is either carried in Token/RefreshToken or set as a cookie, in which case
// both are empty.
type AuthResponse struct {
	users.Profile

	// Token is the JWT access token.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Usage: "Authorization: Bearer <token>"
	Token string `json:"token,omitempty"`

	// RefreshToken is an opaque string exchanged at /auth/refresh for a new Token.
	RefreshToken string `json:"refreshToken,omitempty"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is returned by POST /auth/refresh. An empty RefreshToken
// means the refresh token sent keeps working.
type RefreshResponse struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	User         *users.Profile `json:"user,omitempty"`
}

// ErrorResponse is the error body the backend sends with 4xx/5xx responses.
// It is logged, never shown to the user.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
