package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/tidwall/gjson"
)

// FailureKind distinguishes failures where no response arrived from failures reported by the server
type FailureKind string

const (
	KindTransport FailureKind = "transport"
	KindServer    FailureKind = "server"
)

// Transport and server failure codes
const (
	CodeConnRefused = "ECONNREFUSED"
	CodeConnReset   = "ECONNRESET"
	CodeTimedOut    = "ETIMEDOUT"
	CodeConnAborted = "ECONNABORTED"
	CodeNotFound    = "ENOTFOUND"
	CodeNetwork     = "ERR_NETWORK"
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeBadResponse = "ERR_BAD_RESPONSE"
)

// Failure is the error returned by every Client operation.
// Message holds only what the server said; it is empty for transport
// failures and unreadable bodies, whose cause stays in Err.
type Failure struct {
	Kind    FailureKind
	Code    string
	Message string
	Status  int // HTTP status, 0 for transport failures
	Err     error
}

func (f *Failure) Error() string {
	detail := f.Message
	switch {
	case detail != "":
	case f.Err != nil:
		detail = f.Err.Error()
	case f.Status != 0:
		detail = http.StatusText(f.Status)
	}
	if f.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", f.Code, f.Status, detail)
	}
	return fmt.Sprintf("%s: %s", f.Code, detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// FailureCode returns the low-level code assigned to the failure
func (f *Failure) FailureCode() string {
	return f.Code
}

// FailureMessage returns the message sent by the server, or "" when there is none
func (f *Failure) FailureMessage() string {
	return f.Message
}

// IsTransport reports whether err is a transport failure
func IsTransport(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == KindTransport
}

// IsServer reports whether err is a server failure
func IsServer(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == KindServer
}

func transportFailure(err error) *Failure {
	return &Failure{
		Kind:    KindTransport,
		Code: transportCode(err),
		Err:  err,
	}
}

// transportCode maps a round-trip error to a transport code
func transportCode(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeNotFound
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	case errors.Is(err, syscall.ECONNRESET):
		return CodeConnReset
	case errors.Is(err, syscall.ETIMEDOUT):
		return CodeTimedOut
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeConnAborted
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeConnAborted
	}
	return CodeNetwork
}

// serverFailure builds the failure for a non-2xx response
func serverFailure(status int, body []byte) *Failure {
	code := CodeBadRequest
	if status >= http.StatusInternalServerError {
		code = CodeBadResponse
	}
	return &Failure{
		Kind:    KindServer,
		Code:    code,
		Message: serverMessage(body),
		Status:  status,
	}
}

// malformedFailure is returned when a 2xx body cannot be decoded
func malformedFailure(status int, err error) *Failure {
	return &Failure{
		Kind:   KindServer,
		Code:   CodeBadResponse,
		Status: status,
		Err:    err,
	}
}

// serverMessage reads the message of a structured error body.
// Both {"error":{"message":...}} and {"message":...} are accepted;
// anything else yields "".
func serverMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"error.message", "message"} {
		if msg := gjson.GetBytes(body, path); msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
	}
	return ""
}
