package apperrors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the session engine. Callers classify with errors.Is;
// everything terminal for the session wraps one of the terminal sentinels.
var (
	// Login errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginInProgress    = errors.New("login already in progress")

	// Transport errors (transient, retryable by the caller)
	ErrNetwork = errors.New("network error")
	ErrTimeout = errors.New("request timed out")

	// Token errors (terminal for the session)
	ErrNoCredential             = errors.New("no stored credential")
	ErrRefreshFailed            = errors.New("token refresh failed")
	ErrReauthenticationRequired = errors.New("reauthentication required")

	// Permission errors (non-fatal, degrade gracefully)
	ErrPermissionFetch = errors.New("permission fetch failed")

	// Storage errors
	ErrNotFound = errors.New("not found")
)

// IsTerminal reports whether err ends the current session and requires a
// fresh interactive login.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrRefreshFailed) ||
		errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrReauthenticationRequired)
}

// IsTransient reports whether err is a transport-level failure the caller's
// normal retry policy may handle.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
