package listsync

import (
	"context"
	"errors"
)

// DefaultErrorMessage is shown when a failure carries no message
const DefaultErrorMessage = "Something went wrong. Please try again later."

// Codes assigned to failures that carry none
const (
	CodeUnknown = "ERR_UNKNOWN"
	CodeAborted = "ECONNABORTED"
)

// failure is implemented by errors that carry a transport or server code
type failure interface {
	FailureCode() string
	FailureMessage() string
}

// Classify reduces err to the (code, message) pair given to the notification emitter.
// Codes are passed through unmodified.
func Classify(err error) (code, message string) {
	var f failure
	switch {
	case errors.As(err, &f):
		code, message = f.FailureCode(), f.FailureMessage()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = CodeAborted
	default:
		code = CodeUnknown
	}

	if code == "" {
		code = CodeUnknown
	}
	if message == "" {
		message = DefaultErrorMessage
	}
	return code, message
}
