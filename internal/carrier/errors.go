package carrier

import (
	"errors"
	"fmt"
)

var (
	// ErrFault marks a 200 response whose body reports a business failure.
	ErrFault = errors.New("carrier fault")
	// ErrClientError marks a 4xx response; retrying will not help.
	ErrClientError = errors.New("carrier rejected request")
	// ErrRetriesExhausted marks transient failures on every attempt.
	ErrRetriesExhausted = errors.New("carrier unavailable after retries")
	// ErrUnrecognizedFormat marks a response that is neither a document nor a fault.
	ErrUnrecognizedFormat = errors.New("unrecognized carrier response")
	// ErrInvalidRequest marks a call rejected before any network traffic.
	ErrInvalidRequest = errors.New("invalid carrier request")
)

// StatusError is a non-2xx HTTP answer from the carrier.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("carrier returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is server-class.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

func (e *StatusError) Is(target error) bool {
	return target == ErrClientError && !e.Retryable()
}

// RetryError is returned once every attempt failed transiently.
type RetryError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() error {
	return e.Last
}

func (e *RetryError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// FaultError carries the carrier's fault envelope.
type FaultError struct {
	Fault   string
	Message string
	Detail  string
}

func (e *FaultError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("carrier fault %s: %s", e.Fault, e.Message)
	}
	return fmt.Sprintf("carrier fault %s", e.Fault)
}

func (e *FaultError) Is(target error) bool {
	return target == ErrFault
}

// FormatError describes a response that could not be decoded.
type FormatError struct {
	StatusCode  int
	ContentType string
	Preview     string
	Err         error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("unrecognized carrier response: status=%d content-type=%q body=%q",
		e.StatusCode, e.ContentType, e.Preview)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func (e *FormatError) Is(target error) bool {
	return target == ErrUnrecognizedFormat
}
