package apperr

import (
	"errors"
	"strings"
)

const (
	// RedactKeep is how many characters of a secret stay visible on each end.
	RedactKeep = 8
	redactFill = "***"
)

// Failure is the structured failure returned to callers. It never carries a
// stack trace or a full credential.
type Failure struct {
	Status  int         `json:"status"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Body    FailureBody `json:"body"`
}

// FailureBody holds the diagnostic context operators need.
type FailureBody struct {
	Stage  string        `json:"stage,omitempty"`
	URL    string        `json:"url,omitempty"`
	APIKey string        `json:"api_key,omitempty"`
	Err    SerializedErr `json:"err"`
}

// SerializedErr is an error reduced to its name and message.
type SerializedErr struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Diagnostics is the context attached to a Failure.
type Diagnostics struct {
	Stage   string
	BaseURL string
	Secret  string
}

// NewFailure builds the caller-facing failure for err.
func NewFailure(err error, d Diagnostics) Failure {
	if err == nil {
		err = errors.New("unknown error occurred")
	}
	kind := KindOf(err)
	f := Failure{
		Status:  StatusCode(kind),
		Message: err.Error(),
		Body: FailureBody{
			Stage:  d.Stage,
			URL:    d.BaseURL,
			APIKey: Redact(d.Secret, RedactKeep, RedactKeep),
			Err:    SerializedErr{Name: string(kind), Message: err.Error()},
		},
	}
	if kind == KindVendorUnavailable {
		f.Code = "ERR_VENDOR_DOWN"
	}
	return f
}

// Redact keeps the first start and last end characters of s. Strings too
// short to keep both ends without revealing the whole value are fully masked.
func Redact(s string, start, end int) string {
	if s == "" {
		return ""
	}
	if start < 0 || end < 0 || len(s) <= start+end {
		return redactFill
	}
	var b strings.Builder
	b.WriteString(s[:start])
	b.WriteString(redactFill)
	b.WriteString(s[len(s)-end:])
	return b.String()
}
