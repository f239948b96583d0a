// Package errdef defines the error kinds surfaced by the attendance core.
// Callers construct them with NewX and test for them with IsX; wrapping with
// fmt.Errorf("...: %w", err) preserves the kind.
package errdef

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
)

// NewValidation reports a malformed or missing field.
func NewValidation(format string, a ...any) error {
	return validation{fmt.Errorf(format, a...)}
}

type validation struct{ error }

func IsValidation(err error) bool {
	var e validation
	return errors.As(err, &e)
}

// NewUnauthorized reports a role or ownership mismatch.
func NewUnauthorized(format string, a ...any) error {
	return unauthorized{fmt.Errorf(format, a...)}
}

type unauthorized struct{ error }

func IsUnauthorized(err error) bool {
	var e unauthorized
	return errors.As(err, &e)
}

// NewNotFound creates an error representing a resource that could not be found.
func NewNotFound(format string, a ...any) error {
	return notFound{fmt.Errorf(format, a...)}
}

type notFound struct{ error }

// IsNotFound returns true if err is an error representing a resource that could not be found and false otherwise.
func IsNotFound(err error) bool {
	var e notFound
	return errors.As(err, &e)
}

// NewCapacityExceeded reports a rejected admission together with the
// capacity snapshot the decision was taken against.
func NewCapacityExceeded(view model.CapacityView, format string, a ...any) error {
	return capacityExceeded{error: fmt.Errorf(format, a...), view: view}
}

type capacityExceeded struct {
	error
	view model.CapacityView
}

func IsCapacityExceeded(err error) bool {
	var e capacityExceeded
	return errors.As(err, &e)
}

// CapacitySnapshot extracts the view attached to a CapacityExceeded error.
func CapacitySnapshot(err error) (model.CapacityView, bool) {
	var e capacityExceeded
	if errors.As(err, &e) {
		return e.view, true
	}
	return model.CapacityView{}, false
}

func NewDuplicateIdentity(format string, a ...any) error {
	return duplicateIdentity{fmt.Errorf(format, a...)}
}

type duplicateIdentity struct{ error }

func IsDuplicateIdentity(err error) bool {
	var e duplicateIdentity
	return errors.As(err, &e)
}

// NewUnavailable reports a transient coordination failure. The operation is
// safe to retry.
func NewUnavailable(format string, a ...any) error {
	return unavailable{fmt.Errorf(format, a...)}
}

type unavailable struct{ error }

func IsUnavailable(err error) bool {
	var e unavailable
	return errors.As(err, &e)
}

// NewAuth reports failed authentication (bad credentials or session).
func NewAuth(format string, a ...any) error {
	return authError{fmt.Errorf(format, a...)}
}

type authError struct{ error }

func IsAuth(err error) bool {
	var e authError
	return errors.As(err, &e)
}
