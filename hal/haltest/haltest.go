// Package haltest provides pins for testing code that drives hal.Pin.
package haltest

import (
	"sync"

	"periph.io/x/conn/v3/gpio"

	"i4.energy/across/cellular/hal"
)

// RecordingPin remembers every level written to it.
type RecordingPin struct {
	mu     sync.Mutex
	levels []gpio.Level
}

var _ hal.Pin = (*RecordingPin)(nil)

func (p *RecordingPin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels = append(p.levels, l)
	return nil
}

// Levels returns the levels written so far.
func (p *RecordingPin) Levels() []gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gpio.Level(nil), p.levels...)
}
