package jsgi

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Code is an error code that mirrors the http status codes. It can be used to create errors to pass around across
// middleware layers to handle errors structurally.
type Code int

const (
	CodeUnknown                     Code = 0
	CodeBadRequest                  Code = http.StatusBadRequest                  // RFC 9110, 15.5.1
	CodeUnauthorized                Code = http.StatusUnauthorized                // RFC 9110, 15.5.2
	CodeForbidden                   Code = http.StatusForbidden                   // RFC 9110, 15.5.4
	CodeNotFound                    Code = http.StatusNotFound                    // RFC 9110, 15.5.5
	CodeMethodNotAllowed            Code = http.StatusMethodNotAllowed            // RFC 9110, 15.5.6
	CodeNotAcceptable               Code = http.StatusNotAcceptable               // RFC 9110, 15.5.7
	CodeRequestTimeout              Code = http.StatusRequestTimeout              // RFC 9110, 15.5.9
	CodeConflict                    Code = http.StatusConflict                    // RFC 9110, 15.5.10
	CodeGone                        Code = http.StatusGone                        // RFC 9110, 15.5.11
	CodeRequestEntityTooLarge       Code = http.StatusRequestEntityTooLarge       // RFC 9110, 15.5.14
	CodeUnsupportedMediaType        Code = http.StatusUnsupportedMediaType        // RFC 9110, 15.5.16
	CodeUnprocessableEntity         Code = http.StatusUnprocessableEntity         // RFC 9110, 15.5.21
	CodeTooManyRequests             Code = http.StatusTooManyRequests             // RFC 6585, 4
	CodeRequestHeaderFieldsTooLarge Code = http.StatusRequestHeaderFieldsTooLarge // RFC 6585, 5
	CodeInternalServerError         Code = http.StatusInternalServerError         // RFC 9110, 15.6.1
	CodeNotImplemented              Code = http.StatusNotImplemented              // RFC 9110, 15.6.2
	CodeBadGateway                  Code = http.StatusBadGateway                  // RFC 9110, 15.6.3
	CodeServiceUnavailable          Code = http.StatusServiceUnavailable          // RFC 9110, 15.6.4
	CodeGatewayTimeout              Code = http.StatusGatewayTimeout              // RFC 9110, 15.6.5
)

// Error describes an application error that carries the http status it should be rendered with.
type Error struct {
	code Code
	err  error
}

// NewError inits a new error given the error code.
func NewError(c Code, underlying error) *Error {
	return &Error{c, underlying}
}

func (e *Error) Code() Code    { return e.code }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Error() string {
	status := http.StatusText(int(e.Code()))
	if status == "" {
		status = "Unknown"
	}

	return fmt.Sprintf("%s: %s", status, e.err.Error())
}

// CodeOf returns the error's status code if it is or wraps an [*Error] and
// [CodeUnknown] otherwise.
func CodeOf(err error) Code {
	var codeErr *Error
	if errors.As(err, &codeErr) {
		return codeErr.Code()
	}
	return CodeUnknown
}

// RetryError signals that the whole dispatch must be redone, typically after the
// execution mode of the request was switched. It is not a failure and must travel
// through every middleware unmodified.
type RetryError struct {
	Mode string
}

// Retry returns a retry signal asking the server to redispatch in the given mode.
func Retry(mode string) error {
	return &RetryError{Mode: mode}
}

func (e *RetryError) Error() string { return fmt.Sprintf("jsgi: retry dispatch in mode %q", e.Mode) }

// NotFoundError is the control transfer produced when no route or action matches.
type NotFoundError struct {
	Path string
}

// NotFound returns a not-found signal for the given path.
func NotFound(path string) error {
	return &NotFoundError{Path: path}
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("jsgi: not found: %s", e.Path) }

// RedirectError is an intended control transfer to another location.
type RedirectError struct {
	Code     int
	Location string
}

// RedirectTo returns a redirect signal. Non-redirect codes fall back to 303.
func RedirectTo(code int, location string) error {
	if code < 300 || code > 399 {
		code = http.StatusSeeOther
	}
	return &RedirectError{Code: code, Location: location}
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("jsgi: redirect %d to %s", e.Code, e.Location)
}

// IsRetry reports whether err is or wraps a [*RetryError].
func IsRetry(err error) bool {
	var re *RetryError
	return errors.As(err, &re)
}

// IsControlFlow reports whether err is a retry, redirect or not-found signal. Generic
// error handling must return such errors unchanged instead of rendering them.
func IsControlFlow(err error) bool {
	var (
		re  *RetryError
		nfe *NotFoundError
		rde *RedirectError
	)
	return errors.As(err, &re) || errors.As(err, &nfe) || errors.As(err, &rde)
}

// ControlFlowResponse converts a not-found or redirect signal into the response it stands
// for. It returns false for any other error, including retry signals.
func ControlFlowResponse(err error) (*Response, bool) {
	var nfe *NotFoundError
	if errors.As(err, &nfe) {
		return NotFoundResponse(), true
	}

	var rde *RedirectError
	if errors.As(err, &rde) {
		return RedirectWith(rde.Code, rde.Location), true
	}

	return nil, false
}
