package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the different ways fetching one identifier can fail
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeEmpty       ErrorType = "empty"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeIO          ErrorType = "io"
	ErrorTypeTruncated   ErrorType = "truncated"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a classified failure for a single operation
type Error struct {
	Type    ErrorType
	Op      string
	Ticker  string
	Message string
	Code    int
	Err     error
}

// New creates a classified error
func New(errorType ErrorType, op, message string) *Error {
	return &Error{Type: errorType, Op: op, Message: message}
}

// Wrap classifies an underlying error
func Wrap(errorType ErrorType, op string, err error) *Error {
	return &Error{Type: errorType, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	prefix := string(e.Type) + " error"
	if e.Code != 0 {
		prefix = fmt.Sprintf("%s (code %d)", prefix, e.Code)
	}
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Ticker != "" {
		prefix = e.Ticker + ": " + prefix
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithTicker returns a copy of the error tagged with the identifier it concerns
func (e *Error) WithTicker(ticker string) *Error {
	cp := *e
	cp.Ticker = ticker
	return &cp
}

// WithCode returns a copy of the error carrying an HTTP status code
func (e *Error) WithCode(code int) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

// IsTransient reports whether a failure of this type might succeed on a later run
func IsTransient(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// TypeOf extracts the ErrorType from any error, defaulting to unknown
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// TypeFromStatusCode maps an HTTP status code to an ErrorType
func TypeFromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}

// Fatal conditions that abort a run before any identifier is processed
var (
	ErrMalformedInventory = stderrors.New("malformed inventory")
	ErrMissingAPIKey      = stderrors.New("api key not configured")
	ErrOutputDirectory    = stderrors.New("output directory unavailable")
)
