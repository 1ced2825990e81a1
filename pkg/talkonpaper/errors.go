package talkonpaper

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrTalkNotFound indicates a talk was not found
	ErrTalkNotFound = errors.New("talk not found")

	// ErrPaperNotFound indicates a paper was not found
	ErrPaperNotFound = errors.New("paper not found")

	// ErrSpeakerNotFound indicates a speaker was not found
	ErrSpeakerNotFound = errors.New("speaker not found")

	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateEmail indicates the email is already registered
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicatePaper indicates a paper with the same DOI or URL exists
	ErrDuplicatePaper = errors.New("paper already exists")

	// ErrTalkExists indicates the paper already has a talk
	ErrTalkExists = errors.New("paper already has a talk")

	// ErrInvalidCredentials indicates the email or password did not match
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInactiveAccount indicates the account is disabled
	ErrInactiveAccount = errors.New("account is inactive")

	// ErrInvalidTier indicates an access or subscription level outside the known tiers
	ErrInvalidTier = errors.New("invalid tier")

	// ErrInvalidRequest indicates a request failed validation
	ErrInvalidRequest = errors.New("invalid request")
)

// CatalogError represents an error related to a catalog record
type CatalogError struct {
	Entity string
	ID     string
	Op     string
	Err    error
}

func (e *CatalogError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s operation %s failed: %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("%s operation %s failed for %s: %v", e.Entity, e.Op, e.ID, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// ValidationError carries a human readable reason for a rejected request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
