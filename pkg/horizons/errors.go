package horizons

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is returned for queries rejected before any network call.
var ErrInvalidQuery = errors.New("invalid ephemeris query")

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents connection and transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents calls that exceeded their deadline.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassRateLimited represents calls refused by the outbound limiter.
	ErrorClassRateLimited ErrorClass = "rate_limited"
)

// TransportError is returned when the upstream could not deliver a
// successful response: network failure, timeout, or a non-200 status.
type TransportError struct {
	StatusCode int
	Class      ErrorClass
	Timeout    bool
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("horizons %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("horizons %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a TransportError caused by a timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout
}
