package config

import "time"

type SessionConfig interface {
	GetHTTPTimeout() time.Duration
	GetRetryAfterRenewal() bool
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetHTTPTimeout() time.Duration {
	return GetEnvDuration("HTTP_TIMEOUT", 30*time.Second)
}

// GetRetryAfterRenewal reports whether a request that was answered with 401
// is re-issued once after a successful renewal. Pure cookie deployments turn
// this off and let the caller re-issue.
func (Session) GetRetryAfterRenewal() bool {
	return GetEnvBool("SESSION_RETRY_AFTER_RENEWAL", true)
}
