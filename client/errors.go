package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can react per kind.
type ErrorKind int

const (
	KindConfig ErrorKind = iota
	KindTransport
	KindProtocol
	KindApplication
	KindResolution
	KindRetryExhausted
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindApplication:
		return "application"
	case KindResolution:
		return "resolution"
	case KindRetryExhausted:
		return "retry-exhausted"
	}
	return "unknown"
}

// BookingError is returned by every network-facing call in this package.
type BookingError struct {
	Kind    ErrorKind
	Op      string // e.g. "login", "palinsesti", "prenotazione"
	Status  int    // upstream status field or HTTP status, 0 when not applicable
	Message string
	Err     error
}

func (e *BookingError) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err, or false when err is not a *BookingError.
func KindOf(err error) (ErrorKind, bool) {
	var be *BookingError
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return 0, false
}

// IsKind checks the kind of the outermost BookingError in err.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func newError(kind ErrorKind, op, message string, err error) *BookingError {
	return &BookingError{Kind: kind, Op: op, Message: message, Err: err}
}

func newStatusError(kind ErrorKind, op string, status int, message string) *BookingError {
	return &BookingError{Kind: kind, Op: op, Status: status, Message: message}
}
