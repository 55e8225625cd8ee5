package modem

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"i4.energy/across/cellular/at"
)

// Command is one exchange on a Channel.
type Command struct {
	// Text is the command line, written with a CRLF terminator.
	Text string
	// Timeout bounds the wait for a complete response. Zero uses the
	// channel default.
	Timeout time.Duration
	// Raw writes Text verbatim, without terminator. Used for payloads.
	Raw bool
	// Done overrides the completion test. By default a response is
	// complete on a final result code or the data prompt.
	Done func(at.Response) bool
}

// Cmd returns a Command with default timeout and completion.
func Cmd(text string) Command {
	return Command{Text: text}
}

// Cmdf is Cmd with a formatted command line.
func Cmdf(format string, args ...any) Command {
	return Command{Text: fmt.Sprintf(format, args...)}
}

// ChannelOptions configure a Channel.
type ChannelOptions struct {
	Timeout      time.Duration
	Logger       *zap.Logger
	LogResponses bool
}

// Channel executes AT commands on a Transport, one at a time.
//
// A background goroutine is the only reader of the transport. It forwards
// raw chunks, Exec assembles them into a Response. Bytes that arrive between
// two exchanges are discarded before the next command is written.
type Channel struct {
	transport Transport
	timeout   time.Duration
	log       *zap.Logger
	logResp   bool

	mu     sync.Mutex
	chunks chan []byte
	stop   chan struct{}
	done   chan struct{}
	// readErr is written by the reader before done is closed.
	readErr error

	closeOnce sync.Once
	closeErr  error
}

const (
	chunkQueue = 64
	readBuffer = 1024
)

// NewChannel starts the reader goroutine on t. Close stops it.
func NewChannel(t Transport, opts ChannelOptions) *Channel {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultATTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Channel{
		transport: t,
		timeout:   opts.Timeout,
		log:       opts.Logger,
		logResp:   opts.LogResponses,
		chunks:    make(chan []byte, chunkQueue),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Channel) readLoop() {
	defer close(c.done)

	buf := make([]byte, readBuffer)
	for {
		n, err := c.transport.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case c.chunks <- chunk:
			case <-c.stop:
				return
			}
		}
		if err != nil {
			c.readErr = err
			return
		}
		select {
		case <-c.stop:
			return
		default:
		}
	}
}

// Exec writes cmd and waits for its complete response. It never retries.
//
// A response without terminator after the timeout is returned with Kind
// KindTimeout together with ErrTimeout. Error result codes are not errors
// here, they are reported through the response Kind.
func (c *Channel) Exec(ctx context.Context, cmd Command) (at.Response, error) {
	if !c.mu.TryLock() {
		return at.Response{}, ErrBusy
	}
	defer c.mu.Unlock()

	if c.closed() {
		return at.Response{}, ErrAlreadyClosed
	}

	c.discard()

	wire := cmd.Text
	if !cmd.Raw {
		wire = strings.TrimSpace(cmd.Text) + at.CRLF
	}
	if _, err := c.transport.Write([]byte(wire)); err != nil {
		return at.Response{}, &TransportError{Op: "write", Err: err}
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	done := cmd.Done
	if done == nil {
		done = at.Response.Complete
	}

	var buf bytes.Buffer
	for {
		select {
		case chunk := <-c.chunks:
			buf.Write(chunk)
			if r, ok := complete(buf.String(), done); ok {
				c.trace(cmd, r)
				return r, nil
			}

		case <-c.done:
			// drain what the reader delivered before it stopped
			for len(c.chunks) > 0 {
				buf.Write(<-c.chunks)
			}
			if r, ok := complete(buf.String(), done); ok {
				c.trace(cmd, r)
				return r, nil
			}
			return at.Parse(buf.String()), &TransportError{Op: "read", Err: c.readErr}

		case <-timer.C:
			r := at.Parse(buf.String())
			r.Kind = at.KindTimeout
			c.trace(cmd, r)
			return r, fmt.Errorf("%q after %s: %w", cmd.Text, timeout, ErrTimeout)

		case <-ctx.Done():
			r := at.Parse(buf.String())
			r.Kind = at.KindTimeout
			return r, ctx.Err()
		}
	}
}

// complete parses raw and applies the completion test. Partial lines are
// never complete, except for the data prompt which has no terminator.
func complete(raw string, done func(at.Response) bool) (at.Response, bool) {
	r := at.Parse(raw)
	if !strings.HasSuffix(raw, at.CRLF) && r.Kind != at.KindPrompt {
		return r, false
	}
	return r, done(r)
}

// ExpectOK executes cmd and requires a success result code.
func (c *Channel) ExpectOK(ctx context.Context, cmd Command) (at.Response, error) {
	r, err := c.Exec(ctx, cmd)
	if err != nil {
		return r, err
	}
	if r.Kind != at.KindOk {
		return r, fmt.Errorf("%s: %w: %s", cmd.Text, ErrProtocol, r)
	}
	return r, nil
}

// ReadN reads exactly n further bytes, for replies that announce more payload
// than arrived with them.
func (c *Channel) ReadN(ctx context.Context, n int, timeout time.Duration) ([]byte, error) {
	if !c.mu.TryLock() {
		return nil, ErrBusy
	}
	defer c.mu.Unlock()

	if timeout <= 0 {
		timeout = c.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	out := make([]byte, 0, n)
	for len(out) < n {
		select {
		case chunk := <-c.chunks:
			out = append(out, chunk...)
		case <-c.done:
			for len(c.chunks) > 0 && len(out) < n {
				out = append(out, <-c.chunks...)
			}
			if len(out) >= n {
				break
			}
			return out, &TransportError{Op: "read", Err: c.readErr}
		case <-timer.C:
			return out, fmt.Errorf("read %d of %d bytes: %w", len(out), n, ErrTimeout)
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out[:n], nil
}

// discard drops every byte received since the previous exchange.
// Unsolicited result codes among them are logged.
func (c *Channel) discard() {
	var stale bytes.Buffer
	for {
		select {
		case chunk := <-c.chunks:
			stale.Write(chunk)
			continue
		default:
		}
		break
	}
	if r, ok := c.transport.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			c.log.Debug("reset input buffer", zap.Error(err))
		}
	}
	if stale.Len() == 0 {
		return
	}
	for _, line := range at.Parse(stale.String()).Lines {
		if at.Classify(line) == at.TypeURC {
			c.log.Debug("urc", zap.String("line", line))
		}
	}
	c.log.Debug("discarded stale input", zap.Int("bytes", stale.Len()))
}

func (c *Channel) trace(cmd Command, r at.Response) {
	if !c.logResp {
		return
	}
	text := cmd.Text
	if cmd.Raw {
		text = fmt.Sprintf("<%d bytes>", len(cmd.Text))
	}
	c.log.Debug("exchange",
		zap.String("cmd", text),
		zap.Stringer("kind", r.Kind),
		zap.Strings("lines", r.Lines),
	)
}

func (c *Channel) closed() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// Close stops the reader goroutine and closes the transport. It waits for
// the reader to exit.
func (c *Channel) Close() error {
	err := ErrAlreadyClosed
	c.closeOnce.Do(func() {
		close(c.stop)
		c.closeErr = c.transport.Close()
		<-c.done
		err = c.closeErr
	})
	return err
}
