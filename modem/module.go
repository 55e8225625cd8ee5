package modem

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"i4.energy/across/cellular/at"
)

// Module drives one SIMCom cellular module through its Channel.
//
// A Module has a single owner. Every public method except State, Session
// and Name takes the module lock with TryLock and fails with ErrBusy instead of
// waiting, so overlapping use is rejected rather than queued.
type Module struct {
	mu      sync.Mutex
	cfg     Config
	variant Variant
	ch      *Channel
	log     *zap.Logger
	name    string

	state   atomic.Int32
	session Session
	closed  bool

	// published is the copy of session read by Session.
	published atomic.Pointer[Session]
}

// New dials the transport and starts the command channel. The module is in
// StateOff until BringUp is called.
func New(ctx context.Context, cfg Config, variant Variant) (*Module, error) {
	if cfg.dialer == nil {
		return nil, ErrNoDialer
	}
	if variant == nil {
		return nil, ErrNoVariant
	}
	cfg.setDefaults()

	transport, err := cfg.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	name := cfg.name
	if name == "" {
		name = variant.Name()
	}
	log := cfg.logger.Named("modem").With(zap.String("module", name))

	m := &Module{
		cfg:     cfg,
		variant: variant,
		log:     log,
		name:    name,
		ch: NewChannel(transport, ChannelOptions{
			Timeout:      cfg.atTimeout,
			Logger:       log.Named("at"),
			LogResponses: cfg.logResponses,
		}),
	}
	m.setState(StateOff)
	return m, nil
}

// Name is the configured module name, or the variant name.
func (m *Module) Name() string {
	return m.name
}

// State may be read while another operation is in flight.
func (m *Module) State() State {
	return State(m.state.Load())
}

func (m *Module) setState(s State) {
	if old := State(m.state.Swap(int32(s))); old != s {
		m.log.Debug("state", zap.Stringer("from", old), zap.Stringer("to", s))
	}
}

// lock acquires the module for one operation.
func (m *Module) lock() error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	return nil
}

// Signal reads the current signal quality.
func (m *Module) Signal(ctx context.Context) (at.Signal, error) {
	if err := m.lock(); err != nil {
		return at.Signal{}, err
	}
	defer m.mu.Unlock()

	r, err := m.ch.ExpectOK(ctx, Cmd(at.CmdSignal))
	if err != nil {
		return at.Signal{}, err
	}
	return at.ParseSignal(r)
}

// Battery reads the supply voltage in volts.
func (m *Module) Battery(ctx context.Context) (float64, error) {
	if err := m.lock(); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()

	r, err := m.ch.ExpectOK(ctx, Cmd(at.CmdBattery))
	if err != nil {
		return 0, err
	}
	return at.ParseBattery(r)
}

// Detach leaves the packet data service. The module stays registered and a
// new BringUp is needed before sessions can be opened again.
func (m *Module) Detach(ctx context.Context) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if m.session.State != SessionClosed {
		return ErrSessionOpen
	}
	if _, err := m.ch.ExpectOK(ctx, Command{Text: at.CmdDetach, Timeout: m.cfg.networkTimeout}); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	if m.State() == StateReady {
		m.setState(StateAttaching)
	}
	return nil
}

// PowerOff asks the module to shut down. The module answers with a power
// down notice instead of a result code.
func (m *Module) PowerOff(ctx context.Context) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	r, err := m.ch.Exec(ctx, Command{
		Text: at.CmdPowerOff,
		Done: func(r at.Response) bool {
			return r.Contains(at.UrcPowerDown) || r.Complete()
		},
	})
	if err != nil {
		return fmt.Errorf("power off: %w", err)
	}
	if r.Kind == at.KindError {
		return fmt.Errorf("power off: %w: %s", ErrProtocol, r)
	}
	m.setSession(Session{})
	m.setState(StateOff)
	m.log.Info("powered off")
	return nil
}

// WithChannel runs fn with exclusive use of the command channel, for
// variant specific commands outside the Module API.
func (m *Module) WithChannel(ctx context.Context, fn func(context.Context, *Channel) error) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()
	return fn(ctx, m.ch)
}

// closeTimeout bounds the session teardown in Close.
const closeTimeout = 10 * time.Second

// Close tears down an open session and stops the channel. The transport is
// closed even if the teardown fails.
func (m *Module) Close() error {
	if !m.mu.TryLock() {
		return ErrBusy
	}
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true

	var err error
	if m.session.State != SessionClosed {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		err = multierr.Append(err, m.variant.SessionClose(ctx, m.ch, m.session))
		cancel()
		m.setSession(Session{})
	}
	return multierr.Append(err, m.ch.Close())
}
