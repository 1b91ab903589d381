package ledger

import (
	"errors"
	"fmt"
)

// ErrMalformed marks a response body that could not be decoded into the
// expected shape.
var ErrMalformed = errors.New("malformed response")

// RejectedError is a business-rule rejection: the call reached the ledger and
// it answered with a failure and a human-readable reason.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// TransportError is a connectivity failure, a timeout, or a response that
// could not be understood.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsRejected(err error) bool {
	var rerr *RejectedError
	return errors.As(err, &rerr)
}
