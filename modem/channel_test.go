package modem_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"i4.energy/across/cellular/at"
	"i4.energy/across/cellular/modem"
)

func newTestChannel(t *testing.T, tr modem.Transport) *modem.Channel {
	t.Helper()
	ch := modem.NewChannel(tr, modem.ChannelOptions{Timeout: 100 * time.Millisecond, LogResponses: true})
	t.Cleanup(func() { ch.Close() })
	return ch
}

func TestCmd(t *testing.T) {
	assert.Equal(t, `AT+CSTT="50%off"`, modem.Cmd(`AT+CSTT="50%off"`).Text)
	assert.Equal(t, "AT+CARECV=0,1024", modem.Cmdf("AT+CARECV=%d,%d", 0, 1024).Text)
}

func TestChannelExec(t *testing.T) {
	t.Run("OK round trip", func(t *testing.T) {
		tr := modem.NewTestTransport().Reply("AT", "OK\r\n")
		ch := newTestChannel(t, tr)

		r, err := ch.Exec(context.Background(), modem.Cmd("AT"))
		require.NoError(t, err)
		assert.Equal(t, at.KindOk, r.Kind)
		assert.Equal(t, []string{"OK"}, r.Lines)
		assert.Equal(t, []string{"AT"}, tr.Writes())
	})

	t.Run("Signal quality round trip", func(t *testing.T) {
		tr := modem.NewTestTransport().Reply("AT+CSQ", "AT+CSQ\r\n+CSQ: 15,99\r\n\r\nOK\r\n")
		ch := newTestChannel(t, tr)

		r, err := ch.Exec(context.Background(), modem.Cmd(at.CmdSignal))
		require.NoError(t, err)
		s, err := at.ParseSignal(r)
		require.NoError(t, err)
		assert.Equal(t, 15, s.RSSI)
		assert.Equal(t, at.BandGood, s.Band)
	})

	t.Run("Echo then OK", func(t *testing.T) {
		tr := modem.NewTestTransport().Reply("AT", "AT\r\nAT\r\nOK\r\n")
		ch := newTestChannel(t, tr)

		r, err := ch.Exec(context.Background(), modem.Cmd("AT"))
		require.NoError(t, err)
		assert.Equal(t, at.KindOk, r.Kind)
	})

	t.Run("Error result is not a Go error", func(t *testing.T) {
		tr := modem.NewTestTransport().Reply("AT+CPIN?", "+CME ERROR: 10\r\n")
		ch := newTestChannel(t, tr)

		r, err := ch.Exec(context.Background(), modem.Cmd(at.CmdSimStatus))
		require.NoError(t, err)
		assert.Equal(t, at.KindError, r.Kind)

		_, err = ch.ExpectOK(context.Background(), modem.Cmd(at.CmdSimStatus))
		assert.ErrorIs(t, err, modem.ErrProtocol)
	})

	t.Run("Prompt completes", func(t *testing.T) {
		tr := modem.NewTestTransport().Reply("AT+CIPSEND=5", "AT+CIPSEND=5\r\n> ")
		ch := newTestChannel(t, tr)

		r, err := ch.Exec(context.Background(), modem.Cmdf("AT+CIPSEND=%d", 5))
		require.NoError(t, err)
		assert.Equal(t, at.KindPrompt, r.Kind)
	})

	t.Run("Raw payload has no terminator", func(t *testing.T) {
		tr := modem.NewTestTransport().Reply("hello", "SEND OK\r\n")
		ch := newTestChannel(t, tr)

		r, err := ch.Exec(context.Background(), modem.Command{Text: "hello", Raw: true})
		require.NoError(t, err)
		assert.Equal(t, at.KindOk, r.Kind)
		assert.Equal(t, []string{"hello"}, tr.Writes())
	})

	t.Run("Timeout returns partial response", func(t *testing.T) {
		tr := modem.NewTestTransport().Reply("AT+CGNSINF", "+CGNSINF: 1,0,")
		ch := newTestChannel(t, tr)

		start := time.Now()
		r, err := ch.Exec(context.Background(), modem.Command{Text: at.CmdGNSSInfo, Timeout: 30 * time.Millisecond})
		assert.ErrorIs(t, err, modem.ErrTimeout)
		assert.Equal(t, at.KindTimeout, r.Kind)
		assert.Equal(t, []string{"+CGNSINF: 1,0,"}, r.Lines)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("Partial line waits for terminator", func(t *testing.T) {
		tr := modem.NewTestTransport().Reply("AT", "OK")
		ch := newTestChannel(t, tr)

		go func() {
			time.Sleep(20 * time.Millisecond)
			tr.SendData("\r\n")
		}()

		r, err := ch.Exec(context.Background(), modem.Cmd("AT"))
		require.NoError(t, err)
		assert.Equal(t, at.KindOk, r.Kind)
	})

	t.Run("Custom completion", func(t *testing.T) {
		tr := modem.NewTestTransport().Reply("AT+CIFSR", "AT+CIFSR\r\n10.64.12.7\r\n")
		ch := newTestChannel(t, tr)

		r, err := ch.Exec(context.Background(), modem.Command{
			Text: "AT+CIFSR",
			Done: func(r at.Response) bool { return r.Contains(".") },
		})
		require.NoError(t, err)
		assert.Equal(t, at.KindUnknown, r.Kind)
		assert.True(t, r.Contains("10.64.12.7"))
	})

	t.Run("Context cancellation", func(t *testing.T) {
		ch := newTestChannel(t, modem.NewTestTransport())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := ch.Exec(ctx, modem.Command{Text: "AT", Timeout: time.Second})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestChannelDiscardsStaleInput(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tr := modem.NewTestTransport().Reply("AT", "OK\r\n")
	ch := modem.NewChannel(tr, modem.ChannelOptions{Timeout: 100 * time.Millisecond, Logger: zap.New(core)})
	t.Cleanup(func() { ch.Close() })

	tr.SendData("RING\r\n+CADATAIND: 0\r\n")
	require.Eventually(t, func() bool { return ch.Buffered() > 0 }, time.Second, time.Millisecond)

	r, err := ch.Exec(context.Background(), modem.Cmd("AT"))
	require.NoError(t, err)
	assert.Equal(t, []string{"OK"}, r.Lines)

	var urcs []string
	for _, e := range logs.FilterMessage("urc").All() {
		urcs = append(urcs, e.ContextMap()["line"].(string))
	}
	assert.Equal(t, []string{"RING", "+CADATAIND: 0"}, urcs)
}

type resettableTransport struct {
	*modem.TestTransport
	resets atomic.Int32
}

func (r *resettableTransport) ResetInputBuffer() error {
	r.resets.Add(1)
	return nil
}

func TestChannelResetsInputBuffer(t *testing.T) {
	tr := &resettableTransport{TestTransport: modem.NewTestTransport().Reply("AT", "OK\r\n")}
	ch := newTestChannel(t, tr)

	for range 3 {
		_, err := ch.Exec(context.Background(), modem.Cmd("AT"))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, tr.resets.Load())
}

func TestChannelBusy(t *testing.T) {
	tr := modem.NewTestTransport()
	ch := newTestChannel(t, tr)

	done := make(chan error, 1)
	go func() {
		_, err := ch.Exec(context.Background(), modem.Command{Text: "AT+CIICR", Timeout: 200 * time.Millisecond})
		done <- err
	}()
	require.Eventually(t, func() bool { return tr.Count("AT+CIICR") == 1 }, time.Second, time.Millisecond)

	_, err := ch.Exec(context.Background(), modem.Cmd("AT"))
	assert.ErrorIs(t, err, modem.ErrBusy)
	_, err = ch.ReadN(context.Background(), 1, 0)
	assert.ErrorIs(t, err, modem.ErrBusy)

	assert.ErrorIs(t, <-done, modem.ErrTimeout)
	assert.Zero(t, tr.Count("AT"))
}

func TestChannelReadN(t *testing.T) {
	tr := modem.NewTestTransport()
	ch := newTestChannel(t, tr)

	tr.SendData("abc")
	tr.SendData("defgh")
	data, err := ch.ReadN(context.Background(), 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcde"), data)

	data, err = ch.ReadN(context.Background(), 4, 20*time.Millisecond)
	assert.ErrorIs(t, err, modem.ErrTimeout)
	assert.Empty(t, data)
}

func TestChannelTransportErrors(t *testing.T) {
	t.Run("Write failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tr := modem.NewMockTransport(ctrl)

		release := make(chan struct{})
		tr.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-release
			return 0, errors.New("port closed")
		})
		writeErr := errors.New("device disconnected")
		tr.EXPECT().Write([]byte("AT\r\n")).Return(0, writeErr)
		tr.EXPECT().Close().DoAndReturn(func() error {
			close(release)
			return nil
		})

		ch := modem.NewChannel(tr, modem.ChannelOptions{})
		_, err := ch.Exec(context.Background(), modem.Cmd("AT"))
		assert.ErrorIs(t, err, modem.ErrIO)
		assert.ErrorIs(t, err, writeErr)

		var te *modem.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "write", te.Op)

		require.NoError(t, ch.Close())
	})

	t.Run("Read failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tr := modem.NewMockTransport(ctrl)

		readErr := errors.New("framing error")
		tr.EXPECT().Read(gomock.Any()).Return(0, readErr)
		tr.EXPECT().Write(gomock.Any()).Return(4, nil).AnyTimes()
		tr.EXPECT().Close().Return(nil)

		ch := modem.NewChannel(tr, modem.ChannelOptions{})
		_, err := ch.Exec(context.Background(), modem.Cmd("AT"))
		assert.ErrorIs(t, err, modem.ErrIO)
		assert.ErrorIs(t, err, readErr)

		require.NoError(t, ch.Close())
	})
}

func TestChannelClose(t *testing.T) {
	tr := modem.NewTestTransport()
	ch := modem.NewChannel(tr, modem.ChannelOptions{})

	require.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.Close(), modem.ErrAlreadyClosed)

	_, err := ch.Exec(context.Background(), modem.Cmd("AT"))
	assert.ErrorIs(t, err, modem.ErrAlreadyClosed)
}
