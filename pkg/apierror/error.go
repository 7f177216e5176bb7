package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of API failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalid
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindNotAllowed
	KindConflict
	KindRateLimited
	KindInternal
	KindBadGateway
	KindUnavailable
	KindGatewayTimeout
	// KindLocal marks errors raised by the SDK before any request was sent.
	KindLocal
)

var kindNames = map[Kind]string{
	KindUnknown:         "api error",
	KindInvalid:         "invalid request",
	KindValidation:      "validation error",
	KindUnauthenticated: "unauthenticated",
	KindForbidden:       "forbidden",
	KindNotFound:        "not found",
	KindNotAllowed:      "method not allowed",
	KindConflict:        "conflict",
	KindRateLimited:     "rate limited",
	KindInternal:        "internal server error",
	KindBadGateway:      "bad gateway",
	KindUnavailable:     "service unavailable",
	KindGatewayTimeout:  "gateway timeout",
	KindLocal:           "local validation error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error lets a Kind act as an errors.Is target.
func (k Kind) Error() string {
	return "wisefood: " + k.String()
}

// codeKinds maps server-side error codes; consulted before statusKinds.
var codeKinds = map[string]Kind{
	"request/invalid":       KindInvalid,
	"request/unprocessable": KindValidation,
	"auth/unauthorized":     KindUnauthenticated,
	"auth/forbidden":        KindForbidden,
	"resource/not_found":    KindNotFound,
	"request/not_allowed":   KindNotAllowed,
	"resource/conflict":     KindConflict,
	"quota/rate_limited":    KindRateLimited,
	"server/internal":       KindInternal,
	"upstream/bad_gateway":  KindBadGateway,
	"upstream/unavailable":  KindUnavailable,
	"upstream/timeout":      KindGatewayTimeout,
}

var statusKinds = map[int]Kind{
	http.StatusBadRequest:          KindInvalid,
	http.StatusUnauthorized:        KindUnauthenticated,
	http.StatusForbidden:           KindForbidden,
	http.StatusNotFound:            KindNotFound,
	http.StatusMethodNotAllowed:    KindNotAllowed,
	http.StatusConflict:            KindConflict,
	http.StatusUnprocessableEntity: KindValidation,
	http.StatusTooManyRequests:     KindRateLimited,
	http.StatusInternalServerError: KindInternal,
	http.StatusBadGateway:          KindBadGateway,
	http.StatusServiceUnavailable:  KindUnavailable,
	http.StatusGatewayTimeout:      KindGatewayTimeout,
}

func kindFor(status int, code string) Kind {
	if k, ok := codeKinds[code]; ok && code != "" {
		return k
	}
	if k, ok := statusKinds[status]; ok {
		return k
	}
	return KindUnknown
}

// Error is a classified API failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Detail     string
	Code       string
	Title      string
	// Errors holds the nested field-level error list, as decoded from JSON.
	Errors  any
	Extra   map[string]any
	HelpURL string
	// Body is the decoded JSON response, nil for non-JSON bodies.
	Body any

	err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if e.Kind == KindLocal {
		return "wisefood: " + msg
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("wisefood: %s (status %d): %s", e.Kind, e.StatusCode, msg)
}

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e != nil && e.Kind == k
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Retryable reports whether repeating the request might succeed.
func (e *Error) Retryable() bool {
	if e == nil || e.Kind == KindLocal {
		return false
	}
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return e.StatusCode >= 500 && e.StatusCode <= 599
}

// Local wraps err as a client-side validation failure. Local errors never
// carry a status and are never retryable.
func Local(err error) *Error {
	return &Error{Kind: KindLocal, Detail: err.Error(), err: err}
}

// Localf formats a client-side validation failure.
func Localf(format string, args ...any) *Error {
	return Local(fmt.Errorf(format, args...))
}

// IsNotFound reports whether err is a NotFound API error.
func IsNotFound(err error) bool {
	return errors.Is(err, KindNotFound)
}

// IsRetryable reports whether err (or anything it wraps) is a retryable API error.
func IsRetryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}
