package engine

import "errors"

// Domain errors for the engine package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, engine.ErrActionTimeout) {
//	    // handler exceeded the per-action timeout
//	}
var (
	// ErrUnknownActionType is returned when registering a handler for an undeclared action type.
	ErrUnknownActionType = errors.New("automation: unknown action type")

	// ErrActionTimeout is recorded when a handler exceeds the per-action timeout.
	ErrActionTimeout = errors.New("automation: action timed out")

	// ErrHandlerPanic is recorded when a handler panics.
	ErrHandlerPanic = errors.New("automation: action handler panicked")

	// ErrMissingTarget is returned by a handler that cannot find the entity it acts on.
	ErrMissingTarget = errors.New("automation: missing action target")

	// ErrParamsMismatch is returned when a handler receives params for another action type.
	ErrParamsMismatch = errors.New("automation: params do not match action type")

	// ErrImmutableField is returned when a patch tries to change a rule's id or createdAt.
	ErrImmutableField = errors.New("automation: id and createdAt cannot be changed")

	// ErrPresetNotFound is returned when a preset key does not exist.
	ErrPresetNotFound = errors.New("automation: preset not found")
)
