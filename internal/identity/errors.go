package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

type Code string

const (
	CodeInvalidEmailDomain     Code = "invalid_email_domain"
	CodeUserAlreadyExists      Code = "user_already_exists"
	CodeEmailExists            Code = "email_exists"
	CodeInvalidCredentials     Code = "invalid_credentials"
	CodeEmailNotConfirmed      Code = "email_not_confirmed"
	CodeWeakPassword           Code = "weak_password"
	CodeValidationFailed       Code = "validation_failed"
	CodeOverRequestRateLimit   Code = "over_request_rate_limit"
	CodeOverEmailSendRateLimit Code = "over_email_send_rate_limit"
	CodeSignupDisabled         Code = "signup_disabled"
	CodeSessionNotFound        Code = "session_not_found"
	CodeUserNotFound           Code = "user_not_found"
	CodeBadJWT                 Code = "bad_jwt"
	CodeProfileNotFound        Code = "profile_not_found"
	CodeTransport              Code = "transport"
	CodeUnexpected             Code = "unexpected"
	CodeUnclassified           Code = "unclassified"
)

// PostgRESTNoRows is the PostgREST code for a single-object request that matched no row.
const PostgRESTNoRows = "PGRST116"

var knownCodes = map[string]Code{
	string(CodeInvalidEmailDomain):     CodeInvalidEmailDomain,
	string(CodeUserAlreadyExists):      CodeUserAlreadyExists,
	string(CodeEmailExists):            CodeEmailExists,
	string(CodeInvalidCredentials):     CodeInvalidCredentials,
	string(CodeEmailNotConfirmed):      CodeEmailNotConfirmed,
	string(CodeWeakPassword):           CodeWeakPassword,
	string(CodeValidationFailed):       CodeValidationFailed,
	string(CodeOverRequestRateLimit):   CodeOverRequestRateLimit,
	string(CodeOverEmailSendRateLimit): CodeOverEmailSendRateLimit,
	string(CodeSignupDisabled):         CodeSignupDisabled,
	string(CodeSessionNotFound):        CodeSessionNotFound,
	string(CodeUserNotFound):           CodeUserNotFound,
	string(CodeBadJWT):                 CodeBadJWT,
	string(CodeProfileNotFound):        CodeProfileNotFound,
	PostgRESTNoRows:                    CodeProfileNotFound,
	string(CodeTransport):              CodeTransport,
	string(CodeUnexpected):             CodeUnexpected,
}

// ClassifyCode maps a wire error code onto the known set by exact match.
func ClassifyCode(raw string) Code {
	if c, ok := knownCodes[raw]; ok {
		return c
	}
	return CodeUnclassified
}

// Error is a classified failure from the identity service or the account flow.
type Error struct {
	Status  int    `json:"status,omitempty"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrInvalidEmailDomain = NewError(CodeInvalidEmailDomain, "Please use a valid school email address")
	ErrUserAlreadyExists  = NewError(CodeUserAlreadyExists, "An account with this email already exists. Please sign in instead.")
	ErrProfileNotFound    = NewError(CodeProfileNotFound, "profile not found")
	ErrNoSession          = NewError(CodeSessionNotFound, "no active session")
)

// CodeOf extracts the classification of any error. Network failures are
// transport errors; anything else that is not an *Error is unclassified.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if IsTransport(err) {
		return CodeTransport
	}
	return CodeUnclassified
}

func IsTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Message returns the human readable text shown to users for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
