package chatroom

import (
	"errors"
	"fmt"
)

// Resolution and concurrency-guard errors surfaced to the caller of the
// specific operation. Failures here never affect other in-flight operations.
var (
	// ErrNoNickname rejects sends before a nickname is configured.
	ErrNoNickname = errors.New("chatroom: nickname not set")
	// ErrNoTransportID means the message exists locally but has not been
	// acknowledged by the transport yet, so actions cannot target it.
	ErrNoTransportID = errors.New("chatroom: no transport id bound for message")
	// ErrMessageNotFound means no message with the given logical ID is in
	// the visible list.
	ErrMessageNotFound = errors.New("chatroom: message not found")
	// ErrNoMessageReporter rejects reports when no reporter is configured.
	ErrNoMessageReporter = errors.New("chatroom: message reporter not configured")
	// ErrHistoryLoadInFlight rejects a second incremental history load while
	// the first is still running.
	ErrHistoryLoadInFlight = errors.New("chatroom: previous history load still in flight")
)

// DecodeError describes a malformed or unrecognized transport payload. The
// event carrying it is dropped without touching session state.
type DecodeError struct {
	// Field is the missing or malformed field ("event", "payload",
	// "payload.id", ...).
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chatroom: decode %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("chatroom: decode: missing or malformed %q", e.Field)
}

func (e *DecodeError) Unwrap() error { return e.Err }
