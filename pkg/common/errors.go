package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures of the core components.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindExtraction    ErrorKind = "extraction"
	KindConnectivity  ErrorKind = "connectivity"
	KindValidation    ErrorKind = "validation"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrExtraction    = errors.New("extraction error")
	ErrConnectivity  = errors.New("connectivity error")
	ErrValidation    = errors.New("validation error")
)

// Error is the typed error returned by the core packages.
//
// Raw carries the offending payload for extraction failures so callers can
// log or display what the model actually answered.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Raw  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel matching the error kind.
func (e *Error) Is(target error) bool {
	return sentinel(e.Kind) == target
}

func sentinel(kind ErrorKind) error {
	switch kind {
	case KindConfiguration:
		return ErrConfiguration
	case KindNotFound:
		return ErrNotFound
	case KindExtraction:
		return ErrExtraction
	case KindConnectivity:
		return ErrConnectivity
	case KindValidation:
		return ErrValidation
	}
	return nil
}

func NewConfigurationError(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NewValidationError(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NewExtractionError wraps a parse failure and keeps the cleaned model output.
func NewExtractionError(op string, raw string, err error) *Error {
	return &Error{Kind: KindExtraction, Op: op, Msg: "cannot parse triplets", Raw: raw, Err: err}
}

func NewConnectivityError(op string, err error) *Error {
	return &Error{Kind: KindConnectivity, Op: op, Msg: "backend unreachable", Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status code the API answers with.
// Connectivity failures share 500 with unclassified errors.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindConfiguration, KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExtraction:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
