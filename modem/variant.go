package modem

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"i4.energy/across/cellular/at"
)

//go:generate go tool mockgen -source=variant.go -destination=mock_variant_test.go -package=modem

// Variant adapts the Module to one SIMCom product. It supplies the hardware
// reset, the setup sent after the first handshake and the TCP dialect.
//
// Variant methods are only called by the Module while it holds its lock, so
// implementations may use the Channel freely.
type Variant interface {
	Name() string
	// Reset power cycles the module through its control pin and waits until
	// it accepts commands.
	Reset(ctx context.Context) error
	PostHandshakeSetup(ctx context.Context, ch *Channel) error
	// PrepareBearer brings up the packet data bearer a session runs on.
	PrepareBearer(ctx context.Context, ch *Channel) error
	SessionOpen(ctx context.Context, ch *Channel, s Session, l Limits) error
	SessionSend(ctx context.Context, ch *Channel, s Session, data []byte) error
	// SessionReceive returns false when no data is pending.
	SessionReceive(ctx context.Context, ch *Channel, s Session, l Limits) ([]byte, bool, error)
	SessionClose(ctx context.Context, ch *Channel, s Session) error
}

// GNSSReceiver is implemented by variants with a satellite receiver.
type GNSSReceiver interface {
	GNSSPower(ctx context.Context, ch *Channel, on bool) error
}

// PollUntil executes cmd until connected reports true, at most l.OpenPolls
// times with l.OpenPollDelay between polls.
func PollUntil(ctx context.Context, ch *Channel, cmd Command, l Limits, connected func(at.Response) bool) error {
	for poll := 1; poll <= l.OpenPolls; poll++ {
		r, err := ch.Exec(ctx, cmd)
		if err == nil && connected(r) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if poll == l.OpenPolls {
			break
		}
		if err := sleep(ctx, l.OpenPollDelay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %w after %d polls", cmd.Text, ErrSessionCapExceeded, l.OpenPolls)
}

// SendPayload announces len(data) with announce, waits for the data prompt
// and writes data. No payload byte is written unless the prompt arrived.
func SendPayload(ctx context.Context, ch *Channel, announce string, data []byte, l Limits) error {
	r, err := ch.Exec(ctx, Command{Text: announce})
	if err != nil {
		return fmt.Errorf("%s: %w", announce, err)
	}
	if r.Kind != at.KindPrompt {
		return fmt.Errorf("%s: %w: %s", announce, ErrSendRejected, r)
	}

	payload := string(data)
	r, err = ch.Exec(ctx, Command{
		Text:    payload,
		Raw:     true,
		Timeout: l.Timeout,
		Done: func(r at.Response) bool {
			return afterEcho(r.Raw, payload).Complete()
		},
	})
	if err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if result := afterEcho(r.Raw, payload); result.Kind != at.KindOk {
		return fmt.Errorf("write payload: %w: %s", ErrProtocol, result)
	}
	return nil
}

// afterEcho classifies the reply to a payload write without the echo of
// the payload, so payload lines are never taken for result codes. While the
// echo is still arriving nothing is classified.
func afterEcho(raw, payload string) at.Response {
	if strings.HasPrefix(payload, raw) {
		return at.Response{Raw: raw}
	}
	return at.Parse(strings.TrimPrefix(raw, payload))
}

// ReceivePayload executes a receive command whose reply is a length header
// followed by raw payload bytes. Only the bytes after the payload are
// classified. A payload that is still arriving when the command times out is
// completed with ReadN, a payload without result code is returned as is.
func ReceivePayload(ctx context.Context, ch *Channel, cmd Command, parse func(string) (at.Received, error), l Limits) ([]byte, bool, error) {
	cmd.Timeout = l.Timeout
	cmd.Done = func(r at.Response) bool {
		rcv, err := parse(r.Raw)
		if err != nil {
			// no header, the command failed or was not understood
			return r.Complete()
		}
		return rcv.Complete() && rcv.Result().Complete()
	}

	r, err := ch.Exec(ctx, cmd)
	rcv, parseErr := parse(r.Raw)
	if err != nil {
		if !errors.Is(err, ErrTimeout) || parseErr != nil {
			return nil, false, fmt.Errorf("%s: %w", cmd.Text, err)
		}
		// the modem has handed the payload over, it is not requested again
		if rcv.Complete() {
			return received(rcv)
		}
		rest, err := ch.ReadN(ctx, rcv.Len-len(rcv.Data), l.Timeout)
		if err != nil {
			return nil, false, fmt.Errorf("%s: read payload: %w", cmd.Text, err)
		}
		return append(rcv.Data, rest...), true, nil
	}
	if parseErr != nil {
		if r.Kind == at.KindError {
			return nil, false, fmt.Errorf("%s: %w: %s", cmd.Text, ErrProtocol, r)
		}
		return nil, false, fmt.Errorf("%s: %w", cmd.Text, parseErr)
	}
	if result := rcv.Result(); result.Kind != at.KindOk {
		return nil, false, fmt.Errorf("%s: %w: %s", cmd.Text, ErrProtocol, result)
	}
	return received(rcv)
}

func received(rcv at.Received) ([]byte, bool, error) {
	if rcv.Len == 0 {
		return nil, false, nil
	}
	return rcv.Data, true, nil
}
