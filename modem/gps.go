package modem

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"i4.energy/across/cellular/at"
)

// AcquireFix powers the GNSS receiver and polls for a position until the
// first fix or until budget has elapsed. It never fails: without a fix, or
// on a variant without receiver, at.NoFix is returned.
func (m *Module) AcquireFix(ctx context.Context, budget time.Duration) at.Fix {
	if err := m.lock(); err != nil {
		m.log.Warn("gps unavailable", zap.Error(err))
		return at.NoFix
	}
	defer m.mu.Unlock()

	gnss, ok := m.variant.(GNSSReceiver)
	if !ok {
		return at.NoFix
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	esc := &gnssEscalator{m: m, gnss: gnss}
	if err := esc.powerCycle(ctx); err != nil {
		m.log.Warn("gnss power on", zap.Error(err))
	}

	var (
		fix at.Fix
		rs  RetryState
	)
	err := m.cfg.gpsPolicy().Do(ctx, &rs, func(ctx context.Context) error {
		r, err := m.ch.ExpectOK(ctx, Cmd(at.CmdGNSSInfo))
		if err != nil {
			return err
		}
		fix, err = at.ParseFix(r)
		return err
	}, esc)
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			m.log.Warn("gps acquisition", zap.Error(err))
		}
		m.log.Info("no gps fix", zap.Duration("budget", budget))
		return at.NoFix
	}

	m.log.Info("gps fix",
		zap.Float64("lat", fix.Latitude),
		zap.Float64("lon", fix.Longitude),
		zap.Int("satellites", fix.Satellites),
	)
	return fix
}

// gnssEscalator power cycles the receiver at the soft step. The hard step
// only ends the climb, the policy then restarts its count, so the receiver is
// cycled once per climb.
type gnssEscalator struct {
	m    *Module
	gnss GNSSReceiver
}

func (e *gnssEscalator) powerCycle(ctx context.Context) error {
	if err := e.gnss.GNSSPower(ctx, e.m.ch, false); err != nil {
		return err
	}
	if err := sleep(ctx, e.m.cfg.gpsSettle); err != nil {
		return err
	}
	return e.gnss.GNSSPower(ctx, e.m.ch, true)
}

func (e *gnssEscalator) SoftReset(ctx context.Context) error {
	e.m.log.Info("gnss power cycle")
	return e.powerCycle(ctx)
}

func (e *gnssEscalator) HardReset(context.Context) error {
	return nil
}
