package formal

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ImportError is returned when a document cannot be turned into a snapshot.
// It lists every problem found, not just the first.
type ImportError struct {
	err *multierror.Error
}

func newImportError(errs *multierror.Error) ImportError {
	return ImportError{err: errs}
}

func (e ImportError) Error() string {
	return fmt.Sprintf("invalid formal state document: %s", e.err.Error())
}

func (e ImportError) Unwrap() error {
	return e.err
}

// Problems returns the individual problems found in the document.
func (e ImportError) Problems() []error {
	if e.err == nil {
		return nil
	}
	return e.err.WrappedErrors()
}

// IsImportError returns whether err is an ImportError
func IsImportError(err error) bool {
	var e ImportError
	return errors.As(err, &e)
}

// Invariant names the stages of Validate, in the order they are checked.
type Invariant string

const (
	TypeOK                Invariant = "TypeOK"
	ComponentConsistency  Invariant = "ComponentConsistency"
	CrossComponentSafety  Invariant = "CrossComponentSafety"
	PerformanceBounds     Invariant = "PerformanceBounds"
	IntegrationInvariants Invariant = "IntegrationInvariants"
)

// InvariantViolation reports the first invariant a snapshot violates.
type InvariantViolation struct {
	Invariant Invariant
	Msg       string
}

func (e InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Invariant, e.Msg)
}

func newViolation(inv Invariant, format string, args ...interface{}) InvariantViolation {
	return InvariantViolation{Invariant: inv, Msg: fmt.Sprintf(format, args...)}
}

// AsInvariantViolation determines whether the given error is an InvariantViolation
// (potentially wrapped). It follows the same semantics as a checked type cast.
func AsInvariantViolation(err error) (*InvariantViolation, bool) {
	var e InvariantViolation
	ok := errors.As(err, &e)
	if ok {
		return &e, true
	}
	return nil, false
}
