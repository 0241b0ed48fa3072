// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Classifier errors.
	ErrMalformedResponse     = errors.New("malformed classifier response")
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// Record store errors.
	ErrRecordNotFound = errors.New("record not found")
	ErrStoreWrite     = errors.New("record store write failed")

	// Task errors.
	ErrTaskNotFound = errors.New("task not found")

	// Upload errors.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
