package api

import (
	"errors"
	"fmt"
	"net/url"
)

// NetworkError wraps a transport failure. Its message is the underlying cause, unchanged.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	var uerr *url.Error
	if errors.As(e.Err, &uerr) && uerr.Err != nil {
		return uerr.Err.Error()
	}
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RequestError reports a non-2xx HTTP status.
type RequestError struct {
	Verb    string
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// ApplicationError reports a well-formed envelope with success=false.
type ApplicationError struct {
	Verb    string
	Message string
}

func (e *ApplicationError) Error() string {
	return e.Message
}

// ProtocolError reports a response body that is not a valid envelope.
type ProtocolError struct {
	Verb string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("invalid %s response: %v", e.Verb, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	var nerr *NetworkError
	if errors.As(err, &nerr) {
		return true
	}
	var rerr *RequestError
	if errors.As(err, &rerr) {
		return rerr.Status >= 500 || rerr.Status == 429
	}
	return false
}
