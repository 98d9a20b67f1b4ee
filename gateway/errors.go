package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the gateway has no record for the requested member.
	ErrNotFound = errors.New("member not found")
	// ErrMalformedResponse means the response body could not be read as JSON.
	ErrMalformedResponse = errors.New("malformed gateway response")
	// ErrInvalidCredentials means /admin-login refused the identity/secret pair.
	ErrInvalidCredentials = errors.New("invalid admin credentials")
)

// TransportError covers everything between us and a readable gateway answer:
// network failures, timeouts, unreadable bodies and unexpected status codes.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BusinessError is a readable gateway answer carrying an "error" field.
// Message is the gateway's text, shown to users as is.
type BusinessError struct {
	Op      string
	Status  int
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// BusinessMessage extracts the verbatim gateway message from err, if it is a BusinessError.
func BusinessMessage(err error) (string, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Message, true
	}
	return "", false
}
