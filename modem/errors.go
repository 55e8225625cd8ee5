package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Module is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNoVariant is returned when a Module is constructed without a Variant.
	ErrNoVariant = errors.New("no module variant configured")

	// ErrNotInitialized is returned when the Dialer produced no Transport.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when an operation is attempted on a Module
	// or Channel that has already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrInvalidConfig is returned by ConfigBuilder.Build when a threshold or
	// duration is outside its plausible range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBusy is returned when a second operation is started on a Module or
	// Channel while another one is in flight.
	//
	// The modem can only process one command at a time, callers must
	// serialise their use of a Module.
	ErrBusy = errors.New("modem busy")

	// ErrTimeout is returned when no terminator arrived within the command
	// timeout.
	ErrTimeout = errors.New("command timed out")

	// ErrIO is wrapped by every TransportError.
	ErrIO = errors.New("transport i/o failure")

	// ErrProtocol is returned when the modem answered, but not with the
	// result the operation requires.
	ErrProtocol = errors.New("unexpected modem response")

	// ErrModuleNotResponding is returned once a retry policy gives up.
	ErrModuleNotResponding = errors.New("module not responding")

	// ErrNotReady is returned by session and network operations before
	// BringUp completed.
	ErrNotReady = errors.New("module not ready")

	// ErrSessionNotOpen is returned by Send and Receive without an open
	// session.
	ErrSessionNotOpen = errors.New("session not open")

	// ErrSessionOpen is returned by OpenSession while a session is open.
	ErrSessionOpen = errors.New("session already open")

	// ErrSessionCapExceeded is returned when a session did not reach the
	// connected state within the configured number of status polls.
	ErrSessionCapExceeded = errors.New("session open poll limit exceeded")

	// ErrSendRejected is returned when the modem refused the length
	// announcement of a send. No payload bytes were written.
	ErrSendRejected = errors.New("send rejected")

	// ErrInvalidEndpoint is returned by OpenSession for an empty address or a
	// port outside 1-65535.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// TransportError is a read or write fault of the underlying Transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrIO and the original fault to errors.Is.
func (e *TransportError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// GiveUpError is returned by Policy.Do when the give-up threshold is hit.
type GiveUpError struct {
	Attempts int
	Err      error
}

func (e *GiveUpError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GiveUpError) Unwrap() []error {
	return []error{ErrModuleNotResponding, e.Err}
}

// StageError reports the bring-up stage that failed.
type StageError struct {
	Stage    State
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("bring-up failed in %s after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
