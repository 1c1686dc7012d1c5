// Package services defines the business logic for bribe reports, tracking
// and accounts. This file centralizes service-level error values so that they
// can be consistently returned by service methods and checked by callers.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import "errors"

var (
	// ErrValidation is the parent of every input validation failure. FieldError
	// unwraps to it.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidUsername is returned when a username violates the policy
	// (3-20 ASCII letters or digits).
	ErrInvalidUsername = errors.New("username must be 3-20 letters or digits")

	// ErrInvalidPassword is returned when a password is shorter than 6 or
	// longer than 72 bytes.
	ErrInvalidPassword = errors.New("password must be 6-72 characters")

	// ErrInvalidDate is returned when the incident date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

	// ErrUsernameTaken is returned by sign-up when the username is in use.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredentials is returned by sign-in for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUserNotFound indicates the authenticated user has no local record.
	ErrUserNotFound = errors.New("user not found")

	// ErrEvidenceUpload is returned when any evidence file in a batch could
	// not be stored. The report is not persisted.
	ErrEvidenceUpload = errors.New("evidence upload failed")

	// ErrTrackingCode is returned when no unused tracking code could be
	// allocated within the configured attempts.
	ErrTrackingCode = errors.New("could not allocate tracking code")

	// ErrProvider wraps unexpected identity provider failures.
	ErrProvider = errors.New("identity provider error")

	// ErrNoReports is returned by Find when nothing matches.
	ErrNoReports = errors.New("no reports found")
)

// FieldError names the input field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *FieldError) Unwrap() error { return ErrValidation }
