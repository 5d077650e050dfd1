// Package apperr defines the error kinds shared by the vendor clients and the
// aggregation core, and the structured failure returned to callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers deciding what to report.
type Kind string

const (
	KindInvalidInput      Kind = "InvalidInput"
	KindVendorUnavailable Kind = "VendorUnavailable"
	KindVendorCallFailed  Kind = "VendorCallFailed"
	KindConfiguration     Kind = "ConfigurationError"
)

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrVendorUnavailable = &Error{Kind: KindVendorUnavailable}
	ErrVendorCallFailed  = &Error{Kind: KindVendorCallFailed}
	ErrConfiguration     = &Error{Kind: KindConfiguration}
)

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is regardless of Op or Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// InvalidInput reports malformed or ambiguous caller input.
func InvalidInput(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Configuration reports a missing or malformed secret or setting.
func Configuration(op, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// VendorCallFailed wraps a failed request to a vendor API.
func VendorCallFailed(op string, err error) error {
	return &Error{Kind: KindVendorCallFailed, Op: op, Err: err}
}

// VendorUnavailable wraps an error seen while the vendor itself is down.
func VendorUnavailable(op string, err error) error {
	return &Error{Kind: KindVendorUnavailable, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are reported as vendor call failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindVendorCallFailed
}

// StatusCode maps an error kind to the coarse status reported to callers.
func StatusCode(k Kind) int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindVendorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
