package modem

import (
	"fmt"
	"time"
)

// State is the bring-up progress of a Module.
type State int32

const (
	StateOff State = iota
	StateAwaitingHandshake
	StateCheckingSim
	StateRegistering
	StateAttaching
	StateReady
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateAwaitingHandshake:
		return "awaiting handshake"
	case StateCheckingSim:
		return "checking sim"
	case StateRegistering:
		return "registering"
	case StateAttaching:
		return "attaching"
	case StateReady:
		return "ready"
	case StateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// MarshalText renders the state for JSON status reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SessionState is the lifecycle of a Session.
type SessionState int

const (
	SessionClosed SessionState = iota
	SessionOpening
	SessionOpen
)

func (s SessionState) String() string {
	switch s {
	case SessionClosed:
		return "closed"
	case SessionOpening:
		return "opening"
	case SessionOpen:
		return "open"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is the single TCP connection a Module may hold. ID is the modem's
// connection identifier, always 0 as only one connection is used.
type Session struct {
	ID      int          `json:"id"`
	Address string       `json:"address,omitempty"`
	Port    int          `json:"port,omitempty"`
	State   SessionState `json:"state"`
}

// Limits bound the session operations of a Variant.
type Limits struct {
	// OpenPolls caps the status polls after a connect command.
	OpenPolls int
	// OpenPollDelay is the pause between status polls.
	OpenPollDelay time.Duration
	// MaxPayload is the largest chunk written by one send command.
	MaxPayload int
	// MaxReceive is the largest read requested by one receive command.
	MaxReceive int
	// Timeout is used for commands with long running network activity such
	// as bearer activation.
	Timeout time.Duration
}
