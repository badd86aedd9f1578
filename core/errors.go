package core

import "errors"

// Authentication Related Errors
var (
	// User errors
	ErrUserExists         = errors.New("user already exists")       // 409 Conflict
	ErrUserNotFound       = errors.New("user not found")            // 404 Not Found
	ErrInvalidCredentials = errors.New("invalid email or password") // 401 Unauthorized
)

// Session errors
var (
	ErrMissingAuthHeader          = errors.New("missing authorization header")               // 401
	ErrInvalidToken               = errors.New("invalid session token")                      // 401
	ErrSessionNotFound            = errors.New("session not found")                          // 401
	ErrSessionExpired             = errors.New("session expired")                            // 401
	ErrForbidden                  = errors.New("session does not belong to requesting user") // 403
	ErrCannotRevokeCurrentSession = errors.New("cannot revoke the current session")          // 400
	ErrCacheNotFound              = errors.New("session not found in cache")
)

// Provider / account-linking errors
var (
	ErrAccountNotFound           = errors.New("account not found")                           // 404
	ErrUnknownProvider           = errors.New("unknown identity provider")                   // 404
	ErrInvalidProviderToken      = errors.New("provider rejected the access token")          // 401
	ErrIncompleteProviderProfile = errors.New("provider profile is missing required fields") // 401
	ErrAccountAlreadyLinked      = errors.New("account is already linked to another user")   // 409
)

// Second-factor errors
var (
	ErrTwoFactorRequired    = errors.New("second factor code required")         // 401
	ErrInvalidCode          = errors.New("invalid one-time code")               // 401
	ErrTwoFactorNotPending  = errors.New("no pending second factor to confirm") // 400
	ErrTwoFactorNotEnabled  = errors.New("second factor is not enabled")        // 400
	ErrTwoFactorNotEnrolled = errors.New("second factor not enrolled")
)

// Request gate rejections, decided before any business logic runs
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")    // 429
	ErrUserAgentBlocked  = errors.New("user agent not allowed") // 403
	ErrOriginNotAllowed  = errors.New("origin not allowed")     // 403
)

// Validation errors (client input)
var (
	ErrInvalidAuthHeader = errors.New("invalid authorization format, expected 'Bearer <token>'") // 401
	ErrEmailRequired     = errors.New("email is required")                                       // 400
	ErrPasswordRequired  = errors.New("password is required")                                    // 400
	ErrPasswordTooShort  = errors.New("password is too short")                                   // 400
	ErrPasswordTooLong   = errors.New("password is too long")                                    // 400
	ErrInvalidEmail      = errors.New("invalid email format")                                    // 400
)

// Config errors (server-side configuration)
var (
	ErrDBAdapterRequired   = errors.New("database adapter is required") // 500
	ErrHTTPAdapterRequired = errors.New("http adapter is required")     // 500
	ErrSecretRequired      = errors.New("secret is required")           // 500
	ErrSecretTooShort      = errors.New("secret too short")             // 500
)
