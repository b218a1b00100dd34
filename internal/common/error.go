// Package common defines constants, sentinel errors and small helpers shared
// by the ProposalKeeper server, its HTTP layer and the admin tooling.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrDuplicateUser = errors.New("user already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrStorageFailure = errors.New("storage failure")

	// Authorization and lifecycle errors.
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("proposal is no longer editable")

	// Credential errors. Unknown user and wrong password share one value.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Document upload errors.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")

	// ErrorIncorrectStatus guards the status column against values outside
	// the four review states.
	ErrorIncorrectStatus = errors.New("incorrect status")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
