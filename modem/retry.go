package modem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"i4.energy/across/cellular/hal"
)

// Action is the escalation step chosen after a failed attempt.
type Action int

const (
	ActionRetry Action = iota
	ActionSoftReset
	ActionHardReset
	ActionGiveUp
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionSoftReset:
		return "soft reset"
	case ActionHardReset:
		return "hard reset"
	case ActionGiveUp:
		return "give up"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// RetryState counts consecutive failures of one operation. It belongs to a
// single invocation of that operation and is never shared.
type RetryState struct {
	Attempts int
}

// Reset zeroes the counter after a success.
func (s *RetryState) Reset() {
	s.Attempts = 0
}

// DefaultHardResetOffset is the distance between the soft and the hard reset
// threshold.
const DefaultHardResetOffset = 5

// Policy decides when repeated failures escalate to a reset and when to give
// up. Escalation fires on equality, each threshold once per climb.
//
// A zero SoftResetAt disables both resets and a zero GiveUpAt disables giving
// up; the caller's context then bounds the loop. Without a give-up threshold
// the counter restarts after a hard reset, so escalation repeats.
type Policy struct {
	SoftResetAt     int
	HardResetOffset int
	GiveUpAt        int
	Delay           time.Duration
}

// HardResetAt returns the attempt that triggers a hard reset, 0 if resets
// are disabled.
func (p Policy) HardResetAt() int {
	if p.SoftResetAt == 0 {
		return 0
	}
	return p.SoftResetAt + p.HardResetOffset
}

// Validate checks soft < hard < give-up for the thresholds in use.
func (p Policy) Validate() error {
	switch {
	case p.SoftResetAt < 0, p.HardResetOffset < 0, p.GiveUpAt < 0:
		return fmt.Errorf("%w: negative retry threshold", ErrInvalidConfig)
	case p.Delay < 0:
		return fmt.Errorf("%w: negative retry delay", ErrInvalidConfig)
	case p.SoftResetAt > 0 && p.HardResetOffset == 0:
		return fmt.Errorf("%w: hard reset offset must be positive", ErrInvalidConfig)
	case p.SoftResetAt > 0 && p.GiveUpAt > 0 && p.HardResetAt() >= p.GiveUpAt:
		return fmt.Errorf("%w: soft reset (%d) < hard reset (%d) < give up (%d) violated",
			ErrInvalidConfig, p.SoftResetAt, p.HardResetAt(), p.GiveUpAt)
	}
	return nil
}

// Next records one failure and returns the updated state together with the
// action to take before the next attempt.
func (p Policy) Next(s RetryState) (RetryState, Action) {
	s.Attempts++
	switch {
	case p.GiveUpAt > 0 && s.Attempts >= p.GiveUpAt:
		return s, ActionGiveUp
	case p.SoftResetAt > 0 && s.Attempts == p.SoftResetAt:
		return s, ActionSoftReset
	case p.SoftResetAt > 0 && s.Attempts == p.HardResetAt():
		if p.GiveUpAt == 0 {
			s.Attempts = 0
		}
		return s, ActionHardReset
	}
	return s, ActionRetry
}

// Escalator performs the resets a Policy asks for.
type Escalator interface {
	SoftReset(ctx context.Context) error
	HardReset(ctx context.Context) error
}

// Do runs op until it succeeds, the policy gives up or ctx ends. Failures of
// op are counted in s. Escalation errors are absorbed into the count unless
// they are terminal themselves, which is a give-up or a context error.
// esc may be nil for policies without resets.
func (p Policy) Do(ctx context.Context, s *RetryState, op func(context.Context) error, esc Escalator) error {
	for {
		err := op(ctx)
		if err == nil {
			s.Reset()
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w (last error: %v)", ctxErr, err)
		}

		var action Action
		*s, action = p.Next(*s)

		var escErr error
		switch action {
		case ActionGiveUp:
			return &GiveUpError{Attempts: s.Attempts, Err: err}
		case ActionSoftReset:
			if esc != nil {
				escErr = esc.SoftReset(ctx)
			}
		case ActionHardReset:
			if esc != nil {
				escErr = esc.HardReset(ctx)
			}
		}
		if escErr != nil && (errors.Is(escErr, ErrModuleNotResponding) || ctx.Err() != nil) {
			return escErr
		}

		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	return hal.Wait(ctx, d)
}
