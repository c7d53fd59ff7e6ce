package relay

import "errors"

// ErrorCodeAuthenticationFailed is the only error code a browser redirect
// carries. Failure detail stays in the server log.
const ErrorCodeAuthenticationFailed = "authentication_failed"

// Failure reasons for server-side logging.
const (
	reasonMissingCode         = "missing_code"
	reasonUnknownState        = "unknown_state"
	reasonTokenExchangeFailed = "token_exchange_failed"
	reasonUserinfoFailed      = "userinfo_failed"
	reasonStoreFailed         = "store_failed"
)

// Exchange API error messages, a stable contract with the frontend.
const (
	msgInvalidCode = "Invalid code, correct code expired"
	msgInvalidRole = "Invalid role"
)

var (
	ErrInvalidExchangeCode = errors.New("invalid or expired exchange code")
	ErrInvalidRole         = errors.New("invalid role selection")
)

type errorResponse struct {
	Error string `json:"error"`
}
