// Package fault defines the error classes every levelforge operation reports.
//
// Component errors wrap one of these so callers can classify a failure with
// errors.Is without knowing which component produced it.
package fault

import "errors"

var (
	// ErrConfiguration marks a missing or malformed data source. The
	// operation is aborted before any state is changed.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation marks a bad unit of work (zero-weight row, missing
	// gateway). The unit is skipped and the rest of the operation proceeds.
	ErrValidation = errors.New("validation error")

	// ErrInstantiation marks an engine refusal to create a level or actor.
	// It is fatal to the current operation.
	ErrInstantiation = errors.New("instantiation failed")
)

// Class returns a short name for the class err belongs to, or "error".
func Class(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInstantiation):
		return "instantiation"
	default:
		return "error"
	}
}
