// Package apierror classifies failed WiseFood API responses. Every remote
// failure surfaces as an *Error carrying a Kind, derived from the structured
// error code in the response envelope when present and from the HTTP status
// otherwise. Kinds satisfy the error interface so callers can match with
// errors.Is(err, apierror.KindNotFound).
package apierror
