package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed call.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
	KindInvalidTransition
	KindBadRequest
	KindServer
)

var kindNames = map[Kind]string{
	KindNetwork:           "network",
	KindUnauthorized:      "unauthorized",
	KindForbidden:         "forbidden",
	KindNotFound:          "not_found",
	KindValidation:        "validation",
	KindConflict:          "conflict",
	KindInvalidTransition: "invalid_transition",
	KindBadRequest:        "bad_request",
	KindServer:            "server",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is a failed call. Compare with errors.Is against the Err* values,
// which match on Kind.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Status == 0 && t.Code == ""
}

var (
	ErrNetwork           = &Error{Kind: KindNetwork}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrBadRequest        = &Error{Kind: KindBadRequest}
	ErrServer            = &Error{Kind: KindServer}
)

// ErrCircuitOpen is wrapped in a network error while the breaker rejects
// calls.
var ErrCircuitOpen = errors.New("circuit open")

// Transient reports whether a read may be retried.
func Transient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}

// errorBody mirrors the server's error response.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func kindForStatus(status int, code string) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusConflict && code == "invalid_transition":
		return KindInvalidTransition
	case status == http.StatusConflict:
		return KindConflict
	case status >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindBadRequest
	}
}
