package modem

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultSoftResetAt     = 5
	DefaultGiveUpAt        = 20
	DefaultRetryDelay      = time.Second
	DefaultATTimeout       = 5 * time.Second
	DefaultNetworkTimeout  = 60 * time.Second
	DefaultAttachAttempts  = 10
	DefaultOpenPolls       = 20
	DefaultOpenPollDelay   = time.Second
	DefaultRadioSettle     = time.Second
	DefaultGPSPollInterval = time.Second
	DefaultGPSPowerCycleAt = 15
	DefaultGPSSettle       = time.Second
	DefaultMaxPayload      = 1460
	DefaultMaxReceive      = 1460
)

// Config holds the settings of a Module. Build it with NewConfigBuilder.
type Config struct {
	dialer          Dialer
	name            string
	softResetAt     int
	hardResetOffset int
	giveUpAt        int
	retryDelay      time.Duration
	atTimeout       time.Duration
	networkTimeout  time.Duration
	attachAttempts  int
	openPolls       int
	openPollDelay   time.Duration
	radioSettle     time.Duration
	gpsPollInterval time.Duration
	gpsPowerCycleAt int
	gpsSettle       time.Duration
	maxPayload      int
	maxReceive      int
	logResponses    bool
	logger          *zap.Logger
}

func (c *Config) setDefaults() {
	if c.softResetAt == 0 {
		c.softResetAt = DefaultSoftResetAt
	}
	if c.hardResetOffset == 0 {
		c.hardResetOffset = DefaultHardResetOffset
	}
	if c.giveUpAt == 0 {
		c.giveUpAt = DefaultGiveUpAt
	}
	if c.retryDelay == 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.atTimeout == 0 {
		c.atTimeout = DefaultATTimeout
	}
	if c.networkTimeout == 0 {
		c.networkTimeout = DefaultNetworkTimeout
	}
	if c.attachAttempts == 0 {
		c.attachAttempts = DefaultAttachAttempts
	}
	if c.openPolls == 0 {
		c.openPolls = DefaultOpenPolls
	}
	if c.openPollDelay == 0 {
		c.openPollDelay = DefaultOpenPollDelay
	}
	if c.radioSettle == 0 {
		c.radioSettle = DefaultRadioSettle
	}
	if c.gpsPollInterval == 0 {
		c.gpsPollInterval = DefaultGPSPollInterval
	}
	if c.gpsPowerCycleAt == 0 {
		c.gpsPowerCycleAt = DefaultGPSPowerCycleAt
	}
	if c.gpsSettle == 0 {
		c.gpsSettle = DefaultGPSSettle
	}
	if c.maxPayload == 0 {
		c.maxPayload = DefaultMaxPayload
	}
	if c.maxReceive == 0 {
		c.maxReceive = DefaultMaxReceive
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	if err := c.stagePolicy().Validate(); err != nil {
		return err
	}
	if c.giveUpAt > 1000 {
		return fmt.Errorf("%w: give up threshold %d", ErrInvalidConfig, c.giveUpAt)
	}
	if c.attachAttempts < 1 || c.attachAttempts > 100 {
		return fmt.Errorf("%w: attach attempts %d", ErrInvalidConfig, c.attachAttempts)
	}
	if c.openPolls < 1 || c.openPolls > 1000 {
		return fmt.Errorf("%w: open polls %d", ErrInvalidConfig, c.openPolls)
	}
	if c.gpsPowerCycleAt < 1 {
		return fmt.Errorf("%w: gps power cycle threshold %d", ErrInvalidConfig, c.gpsPowerCycleAt)
	}
	if c.maxPayload < 1 || c.maxReceive < 1 {
		return fmt.Errorf("%w: payload limits %d/%d", ErrInvalidConfig, c.maxPayload, c.maxReceive)
	}

	durations := map[string]time.Duration{
		"retry delay":       c.retryDelay,
		"AT timeout":        c.atTimeout,
		"network timeout":   c.networkTimeout,
		"open poll delay":   c.openPollDelay,
		"radio settle":      c.radioSettle,
		"gps poll interval": c.gpsPollInterval,
		"gps settle":        c.gpsSettle,
	}
	for name, d := range durations {
		if d < 0 || d > 10*time.Minute {
			return fmt.Errorf("%w: %s %s", ErrInvalidConfig, name, d)
		}
	}
	return nil
}

// stagePolicy is shared by the handshake, SIM and registration stages.
func (c *Config) stagePolicy() Policy {
	return Policy{
		SoftResetAt:     c.softResetAt,
		HardResetOffset: c.hardResetOffset,
		GiveUpAt:        c.giveUpAt,
		Delay:           c.retryDelay,
	}
}

// attachPolicy has a narrower cap and no resets.
func (c *Config) attachPolicy() Policy {
	return Policy{GiveUpAt: c.attachAttempts, Delay: c.retryDelay}
}

// gpsPolicy power cycles the receiver and never gives up, the acquisition
// budget bounds it. A climb spans gpsPowerCycleAt plus the hard reset offset
// misses.
func (c *Config) gpsPolicy() Policy {
	return Policy{
		SoftResetAt:     c.gpsPowerCycleAt,
		HardResetOffset: c.hardResetOffset,
		Delay:           c.gpsPollInterval,
	}
}

func (c *Config) limits() Limits {
	return Limits{
		OpenPolls:     c.openPolls,
		OpenPollDelay: c.openPollDelay,
		MaxPayload:    c.maxPayload,
		MaxReceive:    c.maxReceive,
		Timeout:       c.networkTimeout,
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	c Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.c.dialer = d
	return b
}

// WithName overrides the module name reported in logs and status.
func (b *ConfigBuilder) WithName(name string) *ConfigBuilder {
	b.c.name = name
	return b
}

// WithThresholds sets the soft reset and give-up attempts of the bring-up
// stages.
func (b *ConfigBuilder) WithThresholds(softResetAt, giveUpAt int) *ConfigBuilder {
	b.c.softResetAt = softResetAt
	b.c.giveUpAt = giveUpAt
	return b
}

func (b *ConfigBuilder) WithHardResetOffset(offset int) *ConfigBuilder {
	b.c.hardResetOffset = offset
	return b
}

func (b *ConfigBuilder) WithRetryDelay(d time.Duration) *ConfigBuilder {
	b.c.retryDelay = d
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.c.atTimeout = d
	return b
}

func (b *ConfigBuilder) WithNetworkTimeout(d time.Duration) *ConfigBuilder {
	b.c.networkTimeout = d
	return b
}

func (b *ConfigBuilder) WithAttachAttempts(n int) *ConfigBuilder {
	b.c.attachAttempts = n
	return b
}

func (b *ConfigBuilder) WithOpenPolls(n int, delay time.Duration) *ConfigBuilder {
	b.c.openPolls = n
	b.c.openPollDelay = delay
	return b
}

func (b *ConfigBuilder) WithRadioSettle(d time.Duration) *ConfigBuilder {
	b.c.radioSettle = d
	return b
}

// WithGPS sets the fix poll interval, the attempt that power cycles the
// receiver and the pause between receiver off and on.
func (b *ConfigBuilder) WithGPS(interval time.Duration, powerCycleAt int, settle time.Duration) *ConfigBuilder {
	b.c.gpsPollInterval = interval
	b.c.gpsPowerCycleAt = powerCycleAt
	b.c.gpsSettle = settle
	return b
}

func (b *ConfigBuilder) WithPayloadLimits(maxPayload, maxReceive int) *ConfigBuilder {
	b.c.maxPayload = maxPayload
	b.c.maxReceive = maxReceive
	return b
}

// WithLogResponses logs every AT exchange at debug level.
func (b *ConfigBuilder) WithLogResponses(on bool) *ConfigBuilder {
	b.c.logResponses = on
	return b
}

func (b *ConfigBuilder) WithLogger(l *zap.Logger) *ConfigBuilder {
	b.c.logger = l
	return b
}

// Build applies defaults to unset fields and validates the result.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.c
	c.setDefaults()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
