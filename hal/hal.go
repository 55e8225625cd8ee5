// Package hal drives the control pins of a cellular module through periph.io.
package hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Pin is an output line such as a reset or power key pin. gpio.PinIO
// satisfies it.
type Pin interface {
	Out(l gpio.Level) error
}

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the periph.io host drivers once per process.
func Init() error {
	initOnce.Do(func() {
		_, initErr = host.Init()
	})
	return initErr
}

// Lookup returns the pin registered under name, e.g. "GPIO23".
func Lookup(name string) (gpio.PinIO, error) {
	if err := Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return p, nil
}

// Open returns the output pin registered under name. An empty name yields a
// NopPin, for boards where the line is not wired.
func Open(name string) (Pin, error) {
	if name == "" {
		return NopPin{}, nil
	}
	return Lookup(name)
}

// Pulse drives pin to active for hold, then back to the opposite level. The
// pin is released even if ctx ends first.
func Pulse(ctx context.Context, pin Pin, active gpio.Level, hold time.Duration) error {
	if err := pin.Out(active); err != nil {
		return fmt.Errorf("assert pin: %w", err)
	}

	waitErr := Wait(ctx, hold)
	if err := pin.Out(!active); err != nil {
		return fmt.Errorf("release pin: %w", err)
	}
	return waitErr
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NopPin accepts every level and drives nothing.
type NopPin struct{}

func (NopPin) Out(gpio.Level) error { return nil }
