package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse indicates a peer reply that could not be parsed.
	ErrMalformedResponse = errors.New("malformed cursor response")

	// ErrCursorMismatch indicates a reply carrying a cursor id that matches
	// neither the id the command was issued against nor zero. It is always
	// fatal for the whole merge: it signals a correctness bug, not a
	// transient failure.
	ErrCursorMismatch = errors.New("unexpected cursor id in response")

	// ErrNotReady is returned by NextReady when no result can be produced
	// without scheduling further work. Calling NextReady in that state is a
	// caller contract violation.
	ErrNotReady = errors.New("nextReady called when not ready")

	// ErrEventOutstanding is returned by NextEvent while a previously
	// returned event has not yet been signaled: exactly one event may be
	// live at a time.
	ErrEventOutstanding = errors.New("nextEvent called with an outstanding event")

	// ErrAlreadyReady is returned by NextEvent when a result is already
	// available and no work needs scheduling.
	ErrAlreadyReady = errors.New("nextEvent called while results are ready")

	// ErrKilled is returned by operations invoked after Kill has begun.
	ErrKilled = errors.New("merger killed")

	// ErrCursorInvalidated is returned when a caller addresses a peer cursor
	// that has been closed or is known dead on the peer.
	ErrCursorInvalidated = errors.New("cursor invalidated")

	// ErrTailableRequired is returned by operations restricted to
	// tailable-awaitData streams.
	ErrTailableRequired = errors.New("operation requires a tailable awaitData stream")

	// ErrCallbackCanceled is delivered to a command callback whose command
	// was canceled before completion.
	ErrCallbackCanceled = errors.New("remote command canceled")

	// ErrDetached is returned by scheduling operations while the merger is
	// detached from its operation context.
	ErrDetached = errors.New("merger detached from operation context")
)

// RemoteError is a failure reported by a peer itself, carrying the peer's
// error code and message.
type RemoteError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (code %d): %s", e.Code, e.Message)
}
