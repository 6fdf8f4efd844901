package oauth2client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for failure modes that carry no payload. Match with
// errors.Is.
var (
	// ErrInvalidCredentials indicates the authorization server rejected the
	// supplied credentials (OAuth2 error code "invalid_grant"). It is matched
	// by AuthServerError values carrying that code.
	ErrInvalidCredentials = errors.New("oauth2client: invalid credentials")

	// ErrCallbackTimeout indicates the authorization callback was not
	// received before the configured timeout elapsed. The listener port has
	// been released by the time this error is returned.
	ErrCallbackTimeout = errors.New("oauth2client: authorization callback timed out")

	// ErrTokenExpired indicates the stored access token is expired and no
	// refresh token is available. The caller must re-run an init flow.
	ErrTokenExpired = errors.New("oauth2client: access token expired and no refresh token available")

	// ErrNotInitialized indicates no token has been acquired yet.
	ErrNotInitialized = errors.New("oauth2client: no token available, run an init flow first")

	// ErrNoPendingProcess indicates a wait was issued without a running
	// authorization code process.
	ErrNoPendingProcess = errors.New("oauth2client: no authorization code process is pending")
)

// ConfigurationError reports invalid service information or flow arguments.
type ConfigurationError struct {
	Reason string
}

// Error returns the configuration failure message.
func (e *ConfigurationError) Error() string {
	return "oauth2client: invalid configuration: " + e.Reason
}

// AuthServerError reports a failed exchange with the authorization server.
// It carries the raw response status and body for diagnostics, plus the
// error code and description when the body was a standard OAuth2 error
// document (RFC 6749 §5.2).
type AuthServerError struct {
	StatusCode  int
	Body        []byte
	ErrorCode   string
	Description string
}

// Error returns a message describing the server rejection.
func (e *AuthServerError) Error() string {
	switch {
	case e.ErrorCode != "" && e.Description != "":
		return fmt.Sprintf("oauth2client: authorization server returned %q (status %d): %s", e.ErrorCode, e.StatusCode, e.Description)
	case e.ErrorCode != "":
		return fmt.Sprintf("oauth2client: authorization server returned %q (status %d)", e.ErrorCode, e.StatusCode)
	case e.StatusCode >= 200 && e.StatusCode < 300:
		return fmt.Sprintf("oauth2client: malformed token response (status %d)", e.StatusCode)
	default:
		return fmt.Sprintf("oauth2client: authorization server returned status %d", e.StatusCode)
	}
}

// Is enables errors.Is(err, ErrInvalidCredentials) for invalid_grant
// responses so callers can recognize bad user credentials without
// inspecting fields.
func (e *AuthServerError) Is(target error) bool {
	return target == ErrInvalidCredentials && e.ErrorCode == "invalid_grant"
}

// newAuthServerError builds an AuthServerError from a raw token-endpoint
// response, decoding the OAuth2 error document when the body carries one.
func newAuthServerError(statusCode int, body []byte) *AuthServerError {
	serverErr := &AuthServerError{
		StatusCode: statusCode,
		Body:       body,
	}

	var errorDoc struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &errorDoc); err == nil {
		serverErr.ErrorCode = errorDoc.Error
		serverErr.Description = errorDoc.ErrorDescription
	}

	return serverErr
}

// AuthorizationDeniedError reports that the end user or the authorization
// server declined the authorization code grant.
type AuthorizationDeniedError struct {
	ErrorCode   string
	Description string
}

// Error returns a message describing the denial.
func (e *AuthorizationDeniedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth2client: authorization denied: %s: %s", e.ErrorCode, e.Description)
	}
	return fmt.Sprintf("oauth2client: authorization denied: %s", e.ErrorCode)
}

// SecurityError reports a state parameter mismatch on the authorization
// callback. The received authorization code is discarded and never exposed
// to the caller.
type SecurityError struct {
	Reason string
}

// Error returns the security failure message.
func (e *SecurityError) Error() string {
	return "oauth2client: security check failed: " + e.Reason
}

// RefreshError reports a rejected refresh exchange. The token store is left
// untouched; the caller must re-initiate a flow.
type RefreshError struct {
	Err error
}

// Error returns the refresh failure message.
func (e *RefreshError) Error() string {
	return "oauth2client: token refresh failed: " + e.Err.Error()
}

// Unwrap exposes the underlying exchange error.
func (e *RefreshError) Unwrap() error {
	return e.Err
}
