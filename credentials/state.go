package credentials

// SessionState is derived from the stored credential and profile on every
// call. It is never cached.
type SessionState int

const (
	Unauthenticated SessionState = iota
	Authenticated
	Expired
	Corrupt
)

func (s SessionState) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	case Corrupt:
		return "corrupt"
	}
	return "unknown"
}
