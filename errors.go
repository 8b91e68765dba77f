package petsera

import (
	"context"
	"net"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	TextCodeFlowCanceled       = "AUTH_FLOW_CANCELED"
	TextCodeFlowInProgress     = "AUTH_FLOW_IN_PROGRESS"
	TextCodeExchangeFailed     = "AUTH_EXCHANGE_FAILED"
	TextCodeRoleLookupFailed   = "AUTH_ROLE_LOOKUP_FAILED"
	TextCodeNetworkUnavailable = "NETWORK_UNAVAILABLE"
	TextCodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "AUTH_TOKEN_MALFORMED"
)

// ErrInvalidCredentials is returned for a wrong email/password pair. Callers
// recover locally with an inline message; it is never fatal.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrFlowCanceled is returned when the user abandons a social sign-in before
// granting consent. The operation simply did not complete.
var ErrFlowCanceled = errors.New("social sign-in canceled by user", errors.CategoryAuth).
	WithTextCode(TextCodeFlowCanceled).
	WithCode(errors.CodeBadRequest)

// ErrFlowInProgress is returned when a social sign-in is started while another
// one is still outstanding.
var ErrFlowInProgress = errors.New("another social sign-in is already in progress", errors.CategoryConflict).
	WithTextCode(TextCodeFlowInProgress).
	WithCode(errors.CodeConflict)

// ErrExchangeFailed means the provider login succeeded but the backend token
// exchange did not. The credential operation rolls the session back to
// anonymous: a principal the backend does not recognize cannot make a single
// authorized call.
var ErrExchangeFailed = errors.New("backend token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFailed).
	WithCode(errors.CodeUnauthorized)

// ErrRoleLookupFailed marks a failed role fetch. Resolution falls back to the
// least-privileged role; the error is logged, never surfaced as fatal.
var ErrRoleLookupFailed = errors.New("role lookup failed", errors.CategoryOperation).
	WithTextCode(TextCodeRoleLookupFailed).
	WithCode(errors.CodeInternal)

// ErrNetworkUnavailable is the generic transient failure for any call that
// never reached the other side. Retried only on explicit user action.
var ErrNetworkUnavailable = errors.New("network unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeNetworkUnavailable).
	WithCode(errors.CodeInternal)

// ErrTokenExpired means the session credential's exp is in the past. The
// dispatcher treats it as a refresh trigger, not a terminal failure.
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed covers every other reason a session credential failed to
// parse or verify.
var ErrTokenMalformed = errors.New("session token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode claims from a validated token.
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsInvalidCredentials reports whether err classifies as a bad email/password.
func IsInvalidCredentials(err error) bool {
	return hasTextCode(err, TextCodeInvalidCredentials)
}

// IsFlowCanceled reports whether a social sign-in was abandoned by the user.
func IsFlowCanceled(err error) bool {
	return hasTextCode(err, TextCodeFlowCanceled)
}

// IsFlowInProgress reports whether a social sign-in was rejected because
// another one is still outstanding.
func IsFlowInProgress(err error) bool {
	return hasTextCode(err, TextCodeFlowInProgress)
}

// IsExchangeFailed reports whether the backend token exchange failed after a
// successful provider login.
func IsExchangeFailed(err error) bool {
	return hasTextCode(err, TextCodeExchangeFailed)
}

// IsNetworkError reports whether err is a transport-level failure as opposed
// to a response the server actually produced.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, TextCodeNetworkUnavailable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func hasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// wrapNetwork classifies a transport failure while keeping the cause.
func wrapNetwork(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryOperation, msg).
		WithTextCode(TextCodeNetworkUnavailable)
}
