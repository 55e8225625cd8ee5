package modem

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"i4.energy/across/cellular/at"
)

var (
	errSIMNotReady   = errors.New("SIM not ready")
	errNotRegistered = errors.New("not registered")
	errNotAttached   = errors.New("not attached")
)

// BringUp takes the module from power off to Ready: handshake, SIM check,
// network registration and packet data attach. Each stage retries under the
// configured Policy, failures inside a stage only count towards its
// escalation. When a stage gives up the module ends in StateFatal and a
// *StageError is returned.
//
// Calling BringUp again starts over from StateOff.
func (m *Module) BringUp(ctx context.Context) error {
	if err := m.lock(); err != nil {
		return err
	}
	defer m.mu.Unlock()

	m.setSession(Session{})
	m.setState(StateOff)
	m.log.Info("bring-up started")

	if err := m.handshake(ctx); err != nil {
		return m.fail(StateAwaitingHandshake, 0, err)
	}

	stages := []struct {
		state State
		op    func(context.Context) error
	}{
		{StateCheckingSim, m.checkSIM},
		{StateRegistering, m.checkRegistration},
	}
	for _, stage := range stages {
		m.setState(stage.state)
		var rs RetryState
		esc := &stageEscalator{m: m, stage: stage.state}
		if err := m.cfg.stagePolicy().Do(ctx, &rs, stage.op, esc); err != nil {
			return m.fail(stage.state, rs.Attempts, err)
		}
	}

	m.setState(StateAttaching)
	var rs RetryState
	if err := m.cfg.attachPolicy().Do(ctx, &rs, m.attach, nil); err != nil {
		return m.fail(StateAttaching, rs.Attempts, err)
	}

	m.setState(StateReady)
	m.log.Info("bring-up complete")
	return nil
}

func (m *Module) fail(stage State, attempts int, err error) error {
	var giveUp *GiveUpError
	if errors.As(err, &giveUp) {
		attempts = giveUp.Attempts
	}
	// a cancelled bring-up can be restarted, anything else is terminal
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		m.setState(StateFatal)
	}
	m.log.Error("bring-up failed",
		zap.Stringer("stage", stage),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return &StageError{Stage: stage, Attempts: attempts, Err: err}
}

// handshake resets the module, waits until it answers AT and sends the
// variant setup.
func (m *Module) handshake(ctx context.Context) error {
	m.setState(StateAwaitingHandshake)
	if err := m.variant.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	var rs RetryState
	esc := &stageEscalator{m: m, stage: StateAwaitingHandshake}
	err := m.cfg.stagePolicy().Do(ctx, &rs, func(ctx context.Context) error {
		_, err := m.ch.ExpectOK(ctx, Cmd(at.CmdAt))
		return err
	}, esc)
	if err != nil {
		return err
	}

	if err := m.variant.PostHandshakeSetup(ctx, m.ch); err != nil {
		m.log.Warn("post handshake setup", zap.Error(err))
	}
	return nil
}

func (m *Module) checkSIM(ctx context.Context) error {
	r, err := m.ch.ExpectOK(ctx, Cmd(at.CmdSimStatus))
	if err != nil {
		return err
	}
	status, err := at.ParseSIMStatus(r)
	if err != nil {
		return err
	}
	if status != at.SimReady {
		return fmt.Errorf("%w: %s", errSIMNotReady, status)
	}
	return nil
}

func (m *Module) checkRegistration(ctx context.Context) error {
	r, err := m.ch.ExpectOK(ctx, Cmd(at.CmdRegStatus))
	if err != nil {
		return err
	}
	reg, err := at.ParseRegistration(r)
	if err != nil {
		return err
	}
	if !reg.Registered() {
		return fmt.Errorf("%w: stat %d", errNotRegistered, reg.Stat)
	}
	m.log.Info("registered", zap.Bool("roaming", reg.Stat == at.RegRoaming))
	return nil
}

// attach queries the packet data service and requests an attach when it is
// detached. The next attempt checks the outcome.
func (m *Module) attach(ctx context.Context) error {
	r, err := m.ch.ExpectOK(ctx, Cmd(at.CmdAttachQuery))
	if err != nil {
		return err
	}
	attached, err := at.ParseAttach(r)
	if err != nil {
		return err
	}
	if attached {
		return nil
	}
	if _, err := m.ch.ExpectOK(ctx, Command{Text: at.CmdAttach, Timeout: m.cfg.networkTimeout}); err != nil {
		return err
	}
	return errNotAttached
}

// radioCycle switches the RF part off and on again.
func (m *Module) radioCycle(ctx context.Context) error {
	if _, err := m.ch.ExpectOK(ctx, Command{Text: at.CmdRadioOff, Timeout: m.cfg.networkTimeout}); err != nil {
		return err
	}
	if err := sleep(ctx, m.cfg.radioSettle); err != nil {
		return err
	}
	_, err := m.ch.ExpectOK(ctx, Command{Text: at.CmdRadioOn, Timeout: m.cfg.networkTimeout})
	return err
}

// stageEscalator resets the module on behalf of one bring-up stage.
type stageEscalator struct {
	m     *Module
	stage State
}

func (e *stageEscalator) SoftReset(ctx context.Context) error {
	e.m.log.Warn("soft reset", zap.Stringer("stage", e.stage))
	return e.m.radioCycle(ctx)
}

// HardReset power cycles the module. Outside the handshake stage it also
// repeats the handshake before the interrupted stage resumes; the stage keeps
// its attempt count.
func (e *stageEscalator) HardReset(ctx context.Context) error {
	e.m.log.Warn("hard reset", zap.Stringer("stage", e.stage))
	if e.stage == StateAwaitingHandshake {
		return e.m.variant.Reset(ctx)
	}
	if err := e.m.handshake(ctx); err != nil {
		return err
	}
	e.m.setState(e.stage)
	return nil
}
