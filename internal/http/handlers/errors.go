// Package handlers defines HTTP-layer error codes used across all endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes give
// clients a stable, machine-readable error taxonomy that supplements the
// human-readable message.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes (bad_request, unauthorized, not_found) mirror the HTTP
//     status they are sent with.
//   - Domain codes (invalid_date, upload_failed, username_taken) are used when
//     the status alone does not tell the client what to fix.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_date",
//	  "message": "date must be YYYY-MM-DD"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeTooLarge     = "payload_too_large"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeValidation         = "validation_failed"
	ErrCodeInvalidDate        = "invalid_date"
	ErrCodeUploadFailed       = "upload_failed"
	ErrCodeCreateFailed       = "create_failed"
	ErrCodeListFailed         = "list_failed"
	ErrCodeUsernameTaken      = "username_taken"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeProvider           = "provider_error"
	ErrCodeSessionFailed      = "session_failed"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
)
