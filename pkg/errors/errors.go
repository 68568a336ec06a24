package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind classifies why an operation failed.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindIncompatible Kind = "incompatible"
	KindStorage      Kind = "storage"
)

// Error is the typed failure returned by the merge engine and its storage collaborators.
type Error struct {
	Kind     Kind
	Message  string
	EntityID string
	Op       string
	cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) WithEntity(entityID string) *Error {
	e.EntityID = entityID
	return e
}

func (e *Error) ToHTTPError() *httperror.HTTPError {
	msg := e.Message
	if e.Kind == KindStorage {
		// driver errors stay in the logs
		msg = "storage failure"
		if e.Op != "" {
			msg = e.Op + ": " + msg
		}
	}
	herr := httperror.NewHTTPError(e.statusCode(), msg).AddMetaValue("kind", string(e.Kind))
	if e.EntityID != "" {
		herr = herr.AddMetaValue("entity_id", e.EntityID)
	}
	return herr
}

func (e *Error) statusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindIncompatible:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// NotFound reports a missing record of the given kind ("entity", "relationship").
func NotFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", what, id), EntityID: id}
}

func Incompatible(msg string) *Error {
	return &Error{Kind: KindIncompatible, Message: msg}
}

func Incompatiblef(format string, args ...any) *Error {
	return Incompatible(fmt.Sprintf(format, args...))
}

// Storage wraps a driver or transaction failure. Already typed errors pass through unchanged.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindStorage, Message: "storage failure", Op: op, cause: err}
}

// As extracts the typed error from err's chain.
func As(err error) (*Error, bool) {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

func KindOf(err error) (Kind, bool) {
	typed, ok := As(err)
	if !ok {
		return "", false
	}
	return typed.Kind, true
}

// IsValidation is true for validation failures, including incompatibility.
func IsValidation(err error) bool {
	kind, ok := KindOf(err)
	return ok && (kind == KindValidation || kind == KindIncompatible)
}

func IsIncompatible(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindIncompatible
}

func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNotFound
}

func IsStorage(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindStorage
}

// StatusCode maps err onto an HTTP status. Untyped errors are 500.
func StatusCode(err error) int {
	typed, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	return typed.statusCode()
}

// ToHTTPError converts any error into an ectoerror HTTP error.
func ToHTTPError(err error) *httperror.HTTPError {
	if typed, ok := As(err); ok {
		return typed.ToHTTPError()
	}
	if httperror.IsHTTPError(err) {
		return httperror.ToHTTPError(err)
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
}
