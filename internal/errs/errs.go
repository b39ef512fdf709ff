// Package errs defines the error kinds surfaced by resolvers.
//
// Every kind maps onto a gRPC status code so callers can classify an error with
// status.FromError without knowing this package, and onto a stable
// extensions.code string in GraphQL responses.
package errs

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a resolver failure.
type Kind int

const (
	Internal Kind = iota
	Unauthorized
	Forbidden
	NotFound
	BatchFetchFailure
	ValidationFailure
)

var kindNames = map[Kind]string{
	Internal:          "INTERNAL",
	Unauthorized:      "UNAUTHORIZED",
	Forbidden:         "FORBIDDEN",
	NotFound:          "NOT_FOUND",
	BatchFetchFailure: "BATCH_FETCH_FAILURE",
	ValidationFailure: "VALIDATION_FAILURE",
}

var kindCodes = map[Kind]codes.Code{
	Internal:          codes.Internal,
	Unauthorized:      codes.Unauthenticated,
	Forbidden:         codes.PermissionDenied,
	NotFound:          codes.NotFound,
	BatchFetchFailure: codes.Unavailable,
	ValidationFailure: codes.InvalidArgument,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[Internal]
}

// Code returns the gRPC code for k.
func (k Kind) Code() codes.Code { return kindCodes[k] }

// Error is a classified failure. Err, when set, is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// GRPCStatus lets status.FromError recognise the error.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Kind.Code(), e.Error())
}

// Extensions is attached to the GraphQL error entry for this failure.
func (e *Error) Extensions() map[string]any {
	return map[string]any{"code": e.Kind.String()}
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Unauthorizedf(format string, args ...any) error { return newf(Unauthorized, format, args...) }
func Forbiddenf(format string, args ...any) error    { return newf(Forbidden, format, args...) }
func NotFoundf(format string, args ...any) error     { return newf(NotFound, format, args...) }
func Validationf(format string, args ...any) error   { return newf(ValidationFailure, format, args...) }

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
