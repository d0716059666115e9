package services

import "errors"

// Store and lifecycle errors.
var (
	ErrNotFound        = errors.New("token not found")
	ErrDuplicateSecret = errors.New("token secret already exists")
	ErrInvalidInput    = errors.New("invalid input")
)

// Access denial reasons. Each is distinct so callers can react
// differently (offer renewal on expiry, surface the curfew window, ...).
var (
	ErrUnauthorized    = errors.New("invalid token secret")
	ErrTokenDisabled   = errors.New("token is disabled")
	ErrTokenExpired    = errors.New("token has expired")
	ErrCurfewBlocked   = errors.New("access blocked by curfew window")
	ErrIPLimitExceeded = errors.New("token IP address limit exceeded")
)

// DenialReason maps an access denial error to its machine-readable
// reason code, or "" for non-denial errors.
func DenialReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "invalid_token"
	case errors.Is(err, ErrTokenDisabled):
		return "token_disabled"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrCurfewBlocked):
		return "curfew_blocked"
	case errors.Is(err, ErrIPLimitExceeded):
		return "ip_limit_exceeded"
	}
	return ""
}
