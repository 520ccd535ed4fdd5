package service

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/campusmarket/accountkit/internal/identity"
)

// MinPasswordLength matches the hosted service's default password policy.
const MinPasswordLength = 6

func apiError(status int, code identity.Code, msg string) *identity.Error {
	return &identity.Error{Status: status, Code: code, Message: msg}
}

var (
	ErrInvalidEmail         = apiError(http.StatusBadRequest, identity.CodeValidationFailed, "Unable to validate email address: invalid format")
	ErrMissingCredentials   = apiError(http.StatusBadRequest, identity.CodeValidationFailed, "Signup requires a valid password")
	ErrWeakPassword         = apiError(http.StatusUnprocessableEntity, identity.CodeWeakPassword, "Password should be at least 6 characters.")
	ErrInvalidCredentials   = apiError(http.StatusBadRequest, identity.CodeInvalidCredentials, "Invalid login credentials")
	ErrEmailNotConfirmed    = apiError(http.StatusBadRequest, identity.CodeEmailNotConfirmed, "Email not confirmed")
	ErrRefreshTokenInvalid  = apiError(http.StatusBadRequest, identity.CodeSessionNotFound, "Invalid Refresh Token: Refresh Token Not Found")
	ErrRefreshTokenReused   = apiError(http.StatusBadRequest, identity.CodeSessionNotFound, "Invalid Refresh Token: Already Used")
	ErrUserNotFound         = apiError(http.StatusNotFound, identity.CodeUserNotFound, "User not found")
	ErrVerificationInvalid  = apiError(http.StatusForbidden, identity.CodeValidationFailed, "Token has expired or is invalid")
	ErrUnsupportedVerify    = apiError(http.StatusBadRequest, identity.CodeValidationFailed, "Verify requires a verification type")
	ErrUnsupportedGrantType = apiError(http.StatusBadRequest, identity.CodeValidationFailed, "unsupported_grant_type")

	// ErrNoRows is the single-object response for a row that does not exist
	// or is not visible to the caller.
	ErrNoRows             = &identity.Error{Status: http.StatusNotAcceptable, Code: identity.CodeProfileNotFound, Message: "JSON object requested, multiple (or no) rows returned"}
	ErrUnknownColumn      = apiError(http.StatusBadRequest, identity.CodeValidationFailed, "Could not find the column in the schema cache")
	ErrMissingRowFilter   = apiError(http.StatusBadRequest, identity.CodeValidationFailed, "A row filter on id or email is required")
	ErrInvalidColumnValue = apiError(http.StatusBadRequest, identity.CodeValidationFailed, "invalid input syntax for type text")
	ErrInvalidTimestamp   = apiError(http.StatusBadRequest, identity.CodeValidationFailed, "invalid input syntax for type timestamp with time zone")
)

// ErrSignInCooldown is returned while the sign-in guard blocks a caller.
func ErrSignInCooldown(wait time.Duration) *identity.Error {
	seconds := int(math.Ceil(wait.Seconds()))
	return apiError(http.StatusTooManyRequests, identity.CodeOverRequestRateLimit,
		fmt.Sprintf("For security purposes, you can only request this after %d seconds.", seconds))
}
