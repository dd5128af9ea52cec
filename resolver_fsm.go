package einfd

import "fmt"

// resolverState represents a small finite state machine. It has the following transitions:
// ∅               → Unresolved
// Unresolved      → Resolving
// Resolving       → Resolved
// Resolving       → Unsupervised
// Resolving       → Failed
// Unsupervised    → BindingFallback
// BindingFallback → Resolved
// BindingFallback → Failed
//
// Resolved and Failed are terminal; a Resolver is single shot.
type resolverState string

const (
	// Unresolved is the initial state. Nothing has been read from the
	// environment yet.
	resolverStateUnresolved resolverState = "unresolved"
	// Resolving is the state while the environment is inspected and an
	// inherited descriptor is adopted.
	resolverStateResolving resolverState = "resolving"
	// Unsupervised means no usable activation variable was found. The only way
	// forward is binding the fallback address.
	resolverStateUnsupervised resolverState = "unsupervised"
	// BindingFallback is the state while the fallback address is bound.
	resolverStateBindingFallback resolverState = "binding-fallback"
	// Resolved means a listener was handed to the caller.
	resolverStateResolved resolverState = "resolved"
	// Failed means adoption or the fallback bind failed.
	resolverStateFailed resolverState = "failed"
)

var validTransitions = map[resolverState][]resolverState{
	resolverStateUnresolved: {
		resolverStateResolving,
	},
	resolverStateResolving: {
		resolverStateResolved,
		resolverStateUnsupervised,
		resolverStateFailed,
	},
	resolverStateUnsupervised: {
		resolverStateBindingFallback,
	},
	resolverStateBindingFallback: {
		resolverStateResolved,
		resolverStateFailed,
	},
}

func (s *resolverState) canTransitionTo(state resolverState) error {
	for _, target := range validTransitions[*s] {
		if target == state {
			return nil
		}
	}
	return fmt.Errorf("unable to transition from %s to %s", *s, state)
}

func (s *resolverState) transitionTo(state resolverState) error {
	if err := s.canTransitionTo(state); err != nil {
		return err
	}
	*s = state
	return nil
}
