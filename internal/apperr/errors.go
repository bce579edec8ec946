package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error independently of its user-facing text.
type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION"
	KindAuthorization  Kind = "AUTHORIZATION"
	KindValidation     Kind = "VALIDATION"
	KindConflict       Kind = "CONFLICT"
	KindNotFound       Kind = "NOT_FOUND"
	KindInternal       Kind = "INTERNAL"
)

// Error is the application error carried from services to transports.
type Error struct {
	Kind    Kind   `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"error"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an error of the given kind that keeps cause in the chain.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Authentication(msg string) error { return New(KindAuthentication, msg) }

func Forbidden(msg string) error { return New(KindAuthorization, msg) }

func NotFound(msg string) error { return New(KindNotFound, msg) }

func Conflict(msg string) error { return New(KindConflict, msg) }

func Internal(msg string, cause error) error { return Wrap(KindInternal, msg, cause) }

// Validation reports a problem with a single request field.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error onto the status code the REST surface returns.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Body renders the JSON body for err. Internal causes never leak.
func Body(err error) map[string]any {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Kind == KindInternal {
		msg := "internal error"
		if appErr != nil {
			msg = appErr.Message
		}
		return map[string]any{"error": msg, "code": string(KindInternal)}
	}
	body := map[string]any{"error": appErr.Message, "code": string(appErr.Kind)}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	return body
}
