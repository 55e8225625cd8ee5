package modem

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// OpenSession prepares the data bearer and opens a TCP connection to
// address:port. Only one session can be open at a time.
func (m *Module) OpenSession(ctx context.Context, address string, port int) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if address == "" || port < 1 || port > 65535 {
		return fmt.Errorf("%w: %q:%d", ErrInvalidEndpoint, address, port)
	}
	if m.State() != StateReady {
		return fmt.Errorf("%w: %s", ErrNotReady, m.State())
	}
	if m.session.State != SessionClosed {
		return ErrSessionOpen
	}

	m.setSession(Session{Address: address, Port: port, State: SessionOpening})
	log := m.log.With(zap.String("address", address), zap.Int("port", port))

	if err := m.variant.PrepareBearer(ctx, m.ch); err != nil {
		m.setSession(Session{})
		return fmt.Errorf("prepare bearer: %w", err)
	}
	if err := m.variant.SessionOpen(ctx, m.ch, m.session, m.cfg.limits()); err != nil {
		m.setSession(Session{})
		log.Warn("session open failed", zap.Error(err))
		return fmt.Errorf("open session: %w", err)
	}

	open := m.session
	open.State = SessionOpen
	m.setSession(open)
	log.Info("session open")
	return nil
}

// Session returns the current session. Like State it may be read while
// another operation is in flight.
func (m *Module) Session() Session {
	if s := m.published.Load(); s != nil {
		return *s
	}
	return Session{}
}

// setSession replaces the session. The caller holds the module lock.
func (m *Module) setSession(s Session) {
	m.session = s
	m.published.Store(&s)
}

// Send writes data to the open session. Payloads larger than the configured
// maximum are split into several send commands.
func (m *Module) Send(ctx context.Context, data []byte) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if m.session.State != SessionOpen {
		return ErrSessionNotOpen
	}

	limits := m.cfg.limits()
	for len(data) > 0 {
		n := min(len(data), limits.MaxPayload)
		if err := m.variant.SessionSend(ctx, m.ch, m.session, data[:n]); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Receive reads pending data from the open session. ok is false when
// nothing was pending, which is not an error.
func (m *Module) Receive(ctx context.Context) (data []byte, ok bool, err error) {
	if err := m.lock(); err != nil {
		return nil, false, err
	}
	defer m.mu.Unlock()

	if m.session.State != SessionOpen {
		return nil, false, ErrSessionNotOpen
	}

	data, ok, err = m.variant.SessionReceive(ctx, m.ch, m.session, m.cfg.limits())
	if err != nil {
		return nil, false, fmt.Errorf("receive: %w", err)
	}
	return data, ok, nil
}

// CloseSession closes the connection and releases the bearer. Closing
// without an open session is a no-op.
func (m *Module) CloseSession(ctx context.Context) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	if m.session.State == SessionClosed {
		return nil
	}
	s := m.session
	m.setSession(Session{})

	if err := m.variant.SessionClose(ctx, m.ch, s); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	m.log.Info("session closed", zap.String("address", s.Address), zap.Int("port", s.Port))
	return nil
}
