// Package sim7080 adapts the SIM7080G CAT-M/NB-IoT module. Sessions use
// the CA app-layer TCP commands over a CNACT bearer, and the module carries
// a GNSS receiver.
package sim7080

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"

	"i4.energy/across/cellular/at"
	"i4.energy/across/cellular/hal"
	"i4.energy/across/cellular/modem"
)

const Name = "SIM7080G"

const (
	CmdEngineering  = "AT+CENG=0,1"
	CmdURCConfig    = `AT+CURCCFG="QUALCOMM",0`
	CmdBearerQuery  = "AT+CNACT?"
	CmdBearerUp     = "AT+CNACT=0,1"
	CmdBearerDown   = "AT+CNACT=0,0"
	CmdSessionState = "AT+CASTATE?"
	CmdClose        = "AT+CACLOSE=0"
	CmdPlainTCP     = `AT+CASSLCFG=0,"SSL",0`
	CmdGNSSMode     = `AT+SGNSCFG="MODE",0`

	prefixOpen   = "+CAOPEN"
	prefixBearer = "+CNACT"
)

// TCP application settings written when Config.ConfigureTCP is set.
var tcpSettings = []string{
	`AT+CACFG="TRANSWAITTM",5`,
	`AT+CACFG="TRANSPKTSIZE",1024`,
	`AT+CACFG="TIMEOUT",0,10`,
}

// NetworkMode is the radio access selected with CNMP.
type NetworkMode int

const (
	NetworkUnchanged NetworkMode = 0
	NetworkAuto      NetworkMode = 2
	NetworkGSM       NetworkMode = 13
	NetworkLTE       NetworkMode = 38
	NetworkGSMLTE    NetworkMode = 51
)

// LTEMode is the LTE flavour selected with CMNB.
type LTEMode int

const (
	LTEUnchanged LTEMode = 0
	LTECatM      LTEMode = 1
	LTENBIoT     LTEMode = 2
	LTEBoth      LTEMode = 3
)

const (
	// MinPowerKeyHold is the shortest PWRKEY pulse the module reacts to.
	MinPowerKeyHold = 2 * time.Second
	DefaultBootWait = 2 * time.Second

	setupAttempts = 3
)

// Config describes how the SIM7080G is wired and configured.
type Config struct {
	// PowerKey is the PWRKEY line, active high. Nil means not wired.
	PowerKey     hal.Pin
	PowerKeyHold time.Duration
	BootWait     time.Duration

	APN         string
	NetworkMode NetworkMode
	LTEMode     LTEMode
	// ConfigureTCP writes the CACFG transfer settings during setup.
	ConfigureTCP bool

	NetworkTimeout time.Duration
	// RadioSettle is the pause around a network mode change.
	RadioSettle time.Duration
	Logger      *zap.Logger
}

// SIM7080G implements modem.Variant and modem.GNSSReceiver.
type SIM7080G struct {
	cfg Config
	log *zap.Logger
}

var (
	_ modem.Variant      = (*SIM7080G)(nil)
	_ modem.GNSSReceiver = (*SIM7080G)(nil)
)

// New returns a SIM7080G adapter. A PowerKeyHold below MinPowerKeyHold is
// raised to it.
func New(cfg Config) (*SIM7080G, error) {
	switch cfg.NetworkMode {
	case NetworkUnchanged, NetworkAuto, NetworkGSM, NetworkLTE, NetworkGSMLTE:
	default:
		return nil, fmt.Errorf("%w: network mode %d", modem.ErrInvalidConfig, cfg.NetworkMode)
	}
	if cfg.LTEMode < LTEUnchanged || cfg.LTEMode > LTEBoth {
		return nil, fmt.Errorf("%w: lte mode %d", modem.ErrInvalidConfig, cfg.LTEMode)
	}
	if cfg.BootWait < 0 || cfg.NetworkTimeout < 0 || cfg.RadioSettle < 0 {
		return nil, fmt.Errorf("%w: negative duration", modem.ErrInvalidConfig)
	}
	if strings.ContainsRune(cfg.APN, '"') {
		return nil, fmt.Errorf("%w: quote in apn", modem.ErrInvalidConfig)
	}

	if cfg.PowerKey == nil {
		cfg.PowerKey = hal.NopPin{}
	}
	cfg.PowerKeyHold = max(cfg.PowerKeyHold, MinPowerKeyHold)
	if cfg.BootWait == 0 {
		cfg.BootWait = DefaultBootWait
	}
	if cfg.NetworkTimeout == 0 {
		cfg.NetworkTimeout = modem.DefaultNetworkTimeout
	}
	if cfg.RadioSettle == 0 {
		cfg.RadioSettle = modem.DefaultRadioSettle
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &SIM7080G{cfg: cfg, log: cfg.Logger.Named("sim7080")}, nil
}

func (s *SIM7080G) Name() string { return Name }

// Reset pulses PWRKEY high and waits BootWait.
func (s *SIM7080G) Reset(ctx context.Context) error {
	s.log.Info("power key", zap.Duration("hold", s.cfg.PowerKeyHold))
	if err := hal.Pulse(ctx, s.cfg.PowerKey, gpio.High, s.cfg.PowerKeyHold); err != nil {
		return fmt.Errorf("power key: %w", err)
	}
	return hal.Wait(ctx, s.cfg.BootWait)
}

// PostHandshakeSetup disables engineering mode reports and URCs, then
// applies the configured radio modes and TCP settings. Every step is
// attempted, failures are returned together.
func (s *SIM7080G) PostHandshakeSetup(ctx context.Context, ch *modem.Channel) error {
	var errs error
	for _, cmd := range []string{CmdEngineering, CmdURCConfig} {
		_, err := ch.ExpectOK(ctx, modem.Cmd(cmd))
		errs = multierr.Append(errs, err)
	}

	if s.cfg.NetworkMode != NetworkUnchanged {
		errs = multierr.Append(errs, s.setNetworkMode(ctx, ch))
	}
	if s.cfg.LTEMode != LTEUnchanged {
		errs = multierr.Append(errs, s.retryOK(ctx, ch, modem.Cmdf("AT+CMNB=%d", s.cfg.LTEMode)))
	}
	if s.cfg.ConfigureTCP {
		for _, cmd := range tcpSettings {
			_, err := ch.ExpectOK(ctx, modem.Cmd(cmd))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// setNetworkMode switches the radio off while CNMP is changed.
func (s *SIM7080G) setNetworkMode(ctx context.Context, ch *modem.Channel) error {
	if _, err := ch.ExpectOK(ctx, modem.Cmd(at.CmdRadioOff)); err != nil {
		return err
	}
	if err := hal.Wait(ctx, s.cfg.RadioSettle); err != nil {
		return err
	}
	setErr := s.retryOK(ctx, ch, modem.Cmdf("AT+CNMP=%d", s.cfg.NetworkMode))
	_, onErr := ch.ExpectOK(ctx, modem.Cmd(at.CmdRadioOn))
	return multierr.Append(setErr, onErr)
}

func (s *SIM7080G) retryOK(ctx context.Context, ch *modem.Channel, cmd modem.Command) error {
	var err error
	for attempt := 1; attempt <= setupAttempts; attempt++ {
		if _, err = ch.ExpectOK(ctx, cmd); err == nil {
			return nil
		}
		s.log.Debug("setup command failed", zap.String("cmd", cmd.Text), zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// PrepareBearer configures the APN of PDP context 0 and activates it unless
// it is already active.
func (s *SIM7080G) PrepareBearer(ctx context.Context, ch *modem.Channel) error {
	if s.cfg.APN != "" {
		if _, err := ch.ExpectOK(ctx, modem.Cmdf(`AT+CNCFG=0,1,"%s"`, s.cfg.APN)); err != nil {
			return err
		}
	}

	r, err := ch.ExpectOK(ctx, modem.Cmd(CmdBearerQuery))
	if err != nil {
		return err
	}
	if bearerActive(r) {
		s.log.Debug("bearer already active")
		return nil
	}
	_, err = ch.ExpectOK(ctx, modem.Command{Text: CmdBearerUp, Timeout: s.cfg.NetworkTimeout})
	return err
}

// bearerActive looks for "+CNACT: 0,1,<ip>".
func bearerActive(r at.Response) bool {
	for _, l := range r.Lines {
		if !strings.HasPrefix(l, prefixBearer+":") {
			continue
		}
		f := at.SplitFields(strings.TrimPrefix(l, prefixBearer+":"))
		if len(f) >= 2 && f[0] == "0" && f[1] == "1" {
			return true
		}
	}
	return false
}

// SessionOpen disables SSL on connection s.ID, opens it and polls CASTATE
// until it is connected.
func (s *SIM7080G) SessionOpen(ctx context.Context, ch *modem.Channel, sess modem.Session, l modem.Limits) error {
	if err := s.retryOK(ctx, ch, modem.Cmdf(`AT+CASSLCFG=%d,"SSL",0`, sess.ID)); err != nil {
		return fmt.Errorf("plain tcp: %w", err)
	}

	open := modem.Command{
		Text:    fmt.Sprintf(`AT+CAOPEN=%d,0,"TCP","%s",%d`, sess.ID, sess.Address, sess.Port),
		Timeout: s.cfg.NetworkTimeout,
	}
	r, err := ch.ExpectOK(ctx, open)
	if err != nil {
		return err
	}
	// +CAOPEN: <cid>,<result>, result 0 is success
	if f, ok := r.Fields(prefixOpen); ok && len(f) >= 2 && f[1] != "0" {
		return fmt.Errorf("%s: %w: result %s", open.Text, modem.ErrProtocol, f[1])
	}

	return modem.PollUntil(ctx, ch, modem.Cmd(CmdSessionState), l, func(r at.Response) bool {
		return at.ParseCAState(r, sess.ID)
	})
}

func (s *SIM7080G) SessionSend(ctx context.Context, ch *modem.Channel, sess modem.Session, data []byte) error {
	return modem.SendPayload(ctx, ch, fmt.Sprintf("AT+CASEND=%d,%d", sess.ID, len(data)), data,
		modem.Limits{Timeout: s.cfg.NetworkTimeout})
}

// SessionReceive reads at most l.MaxReceive bytes with CARECV.
func (s *SIM7080G) SessionReceive(ctx context.Context, ch *modem.Channel, sess modem.Session, l modem.Limits) ([]byte, bool, error) {
	return modem.ReceivePayload(ctx, ch, modem.Cmdf("AT+CARECV=%d,%d", sess.ID, l.MaxReceive), at.ParseCARECV, l)
}

// SessionClose closes the connection and deactivates the bearer.
func (s *SIM7080G) SessionClose(ctx context.Context, ch *modem.Channel, sess modem.Session) error {
	if _, err := ch.ExpectOK(ctx, modem.Cmdf("AT+CACLOSE=%d", sess.ID)); err != nil {
		s.log.Debug("close connection", zap.Error(err))
	}
	_, err := ch.ExpectOK(ctx, modem.Command{Text: CmdBearerDown, Timeout: s.cfg.NetworkTimeout})
	return err
}

// GNSSPower switches the GNSS receiver. Before power on the receiver is set
// to standalone mode; firmware without SGNSCFG keeps its default.
func (s *SIM7080G) GNSSPower(ctx context.Context, ch *modem.Channel, on bool) error {
	if !on {
		_, err := ch.ExpectOK(ctx, modem.Cmd(at.CmdGNSSPowerOff))
		return err
	}
	if _, err := ch.ExpectOK(ctx, modem.Cmd(CmdGNSSMode)); err != nil {
		s.log.Debug("gnss mode", zap.Error(err))
	}
	_, err := ch.ExpectOK(ctx, modem.Cmd(at.CmdGNSSPowerOn))
	return err
}
