package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// TextCodeTokenInvalidOrExpired is the single code for every reset token
	// failure. Callers must not learn whether the token was unknown or stale.
	TextCodeTokenInvalidOrExpired = "TOKEN_INVALID_OR_EXPIRED"
	// TextCodeSessionExpired marks an expired session artifact
	TextCodeSessionExpired = "SESSION_EXPIRED"
)

// ErrAccountExists is returned when the normalized email is already taken.
var ErrAccountExists = errors.New("email already exists", errors.CategoryConflict).
	WithCode(errors.CodeConflict)

// ErrInvalidCredentials covers both unknown email and wrong password with a
// single message so login cannot be used to enumerate accounts.
var ErrInvalidCredentials = errors.New("email or password do not match or account does not exist", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrAccountNotFound is the informative lookup failure. Deliberately
// asymmetric with login: password reset reports unknown emails verbatim.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrResetTokenInvalid is the combined invalid-or-expired reset outcome.
var ErrResetTokenInvalid = errors.New("reset token is invalid or expired, please try again", errors.CategoryValidation).
	WithTextCode(TextCodeTokenInvalidOrExpired).
	WithCode(errors.CodeBadRequest)

// ErrUnauthenticated is returned for an absent, malformed or expired session.
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned for a verified session with insufficient role or
// subscription. Distinct from ErrUnauthenticated at the boundary.
var ErrForbidden = errors.New("insufficient permissions", errors.CategoryAuthz).
	WithCode(errors.CodeForbidden)

// ErrSessionExpired marks a structurally valid but expired session token.
var ErrSessionExpired = errors.New("session token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(errors.CodeUnauthorized)

// ErrSessionMalformed marks a token that failed signature or shape checks.
var ErrSessionMalformed = errors.New("session token is malformed", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsConflict reports whether err carries the duplicate account outcome.
func IsConflict(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryConflict
	}
	return false
}

// isUniqueViolation detects the store-level unique index error. The index is
// the authoritative source of CONFLICT; the precedent existence check is
// only a fast path and still races.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// statusFromError maps a rich error to an HTTP status, falling back by
// category when no code was set.
func statusFromError(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return errors.CodeInternal
	}

	if richErr.Code != 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return errors.CodeBadRequest
	case errors.CategoryConflict:
		return errors.CodeConflict
	case errors.CategoryAuth:
		return errors.CodeUnauthorized
	case errors.CategoryAuthz:
		return errors.CodeForbidden
	case errors.CategoryNotFound:
		return errors.CodeNotFound
	default:
		return errors.CodeInternal
	}
}
