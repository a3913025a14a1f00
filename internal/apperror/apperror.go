package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("Validation Error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrExternalAuth    = errors.New("external auth failure")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// DuplicateUsername is the conflict raised when a registration (local or
// post-OAuth username claim) collides with an existing account.
func DuplicateUsername(username string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("username %q is already taken", username),
		Field:   "username",
	}
}

// DuplicateExternalIdentity is the conflict raised when an account creation
// carries an external identity that is already linked to an existing user.
// Distinct from DuplicateUsername: the username may be free, it is the
// Google account that has been claimed before.
func DuplicateExternalIdentity() *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: "this external identity is already linked to an account",
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated is returned by operations that require a logged-in user.
// Page handlers map this to a redirect to /login; JSON handlers map it
// to 401.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "authentication required",
	}
}

// ExternalAuthFailed wraps a failure from the external identity provider
// (code exchange rejected, provider unreachable). The session must be left
// untouched when this is returned — no partial login.
func ExternalAuthFailed(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrExternalAuth, cause),
		Message: "external authentication failed",
	}
}
