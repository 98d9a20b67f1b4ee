package models

import "errors"

// ValidationError is user input rejected before any gateway call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalid builds a ValidationError for field.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrBusy rejects a call made while the same session is still waiting on the gateway.
var ErrBusy = errors.New("another request is still in progress")
