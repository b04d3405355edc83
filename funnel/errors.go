package funnel

import "errors"

var (
	// ErrMalformedToken reports a selection payload without a valid
	// "{id}|{name}" shape. The controller treats it exactly like
	// ErrUnexpectedSignal: the signal is dropped, state is preserved.
	ErrMalformedToken = errors.New("funnel: malformed choice token")

	// ErrUnexpectedSignal reports a signal whose shape does not match
	// the session's current state. Never surfaced to the user; the
	// transition is a no-op.
	ErrUnexpectedSignal = errors.New("funnel: signal does not match session state")
)
