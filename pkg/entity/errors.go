package entity

import (
	"errors"

	"github.com/wisefood/wisefood_sdk_go/internal/wfapi"
)

var (
	// ErrReadOnlyField is returned when writing a field declared read-only.
	ErrReadOnlyField = errors.New("entity: field is read-only")
	// ErrUnknownField is returned for names that are not part of the schema.
	ErrUnknownField = errors.New("entity: unknown field")
	// ErrNoIdentifier is returned when an operation needs an identifier the entity lacks.
	ErrNoIdentifier = errors.New("entity: missing identifier")
	// ErrEnhanceUnsupported is returned by Enhance for schemas without an enhance endpoint.
	ErrEnhanceUnsupported = errors.New("entity: enhance is not supported for this resource")

	// ErrUnsupportedStep rejects ranges with a step other than 1.
	ErrUnsupportedStep = errors.New("entity: step other than 1 is not supported for ranges")
	// ErrOpenRange rejects ranges without an upper bound.
	ErrOpenRange = errors.New("entity: open-ended ranges are not supported; specify stop")
	// ErrNegativeRange rejects ranges with negative bounds.
	ErrNegativeRange = errors.New("entity: range bounds must not be negative")
	// ErrIndexOutOfRange is returned by At for positions outside the cached page.
	ErrIndexOutOfRange = errors.New("entity: index out of range")

	// ErrUnbound is returned by Profile operations that need a remote path.
	ErrUnbound = errors.New("entity: profile is not bound to an owner")

	// ErrUnexpectedListFormat is returned when a list or search response has an unknown shape.
	ErrUnexpectedListFormat = wfapi.ErrUnexpectedListFormat
)
