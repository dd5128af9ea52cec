package einfd

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupervised indicates that the process was not started with an
	// activation descriptor, either because the variable is unset or because
	// its value is not a descriptor number. It is recoverable: the caller may
	// bind a fallback address instead.
	ErrUnsupervised = errors.New("not running under einhorn: no activation descriptor in environment")
	// ErrAlreadyResolved is returned by every resolution attempt after the
	// first on the same Resolver.
	ErrAlreadyResolved = errors.New("activation has already been resolved")
)

// AdoptionError is returned when an activation descriptor was present in the
// environment but could not be turned into a listener. It must not be treated
// as a reason to fall back to binding a local address.
type AdoptionError struct {
	// FD is the descriptor number read from the environment.
	FD int
	// Op names the step that failed, e.g. "validate" or "activate".
	Op  string
	Err error
}

func (e *AdoptionError) Error() string {
	return fmt.Sprintf("can't adopt inherited descriptor %d (%s): %v", e.FD, e.Op, e.Err)
}

func (e *AdoptionError) Unwrap() error { return e.Err }

// Cause is for compatibility with errors.Cause.
func (e *AdoptionError) Cause() error { return e.Err }

// FallbackBindError is returned when the unsupervised fallback address could
// not be bound. There is no further fallback.
type FallbackBindError struct {
	Addr string
	Err  error
}

func (e *FallbackBindError) Error() string {
	return fmt.Sprintf("can't bind fallback address %s: %v", e.Addr, e.Err)
}

func (e *FallbackBindError) Unwrap() error { return e.Err }

// Cause is for compatibility with errors.Cause.
func (e *FallbackBindError) Cause() error { return e.Err }

// MalformedEnvError is returned in strict mode when an activation variable is
// present but does not hold a descriptor number.
type MalformedEnvError struct {
	Name  string
	Value string
}

func (e *MalformedEnvError) Error() string {
	return fmt.Sprintf("malformed activation variable %s=%q", e.Name, e.Value)
}
