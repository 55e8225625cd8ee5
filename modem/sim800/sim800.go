// Package sim800 adapts the SIM800L GSM module. Sessions use the legacy
// CIP command set with manual receive.
package sim800

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"

	"i4.energy/across/cellular/at"
	"i4.energy/across/cellular/hal"
	"i4.energy/across/cellular/modem"
)

const Name = "SIM800L"

const (
	CmdJammingOff   = "AT+SJDR=0"
	CmdJammingOn    = "AT+SJDR=1,0,40,0"
	CmdJammingQuery = "AT+SJDR?"
	CmdURCOff       = "AT+CIURC=0"
	CmdShut         = "AT+CIPSHUT"
	CmdManualRx     = "AT+CIPRXGET=1"
	CmdAPNQuery     = "AT+CSTT?"
	CmdBringUp      = "AT+CIICR"
	CmdLocalIP      = "AT+CIFSR"
	CmdStatus       = "AT+CIPSTATUS"
	CmdClose        = "AT+CIPCLOSE"

	stateConnected = "CONNECT OK"
	// SJDR? reply once the detector reported jamming
	jammedReport = "1,0,40,0,1"
)

const (
	DefaultResetHold = 200 * time.Millisecond
	DefaultBootWait  = 5 * time.Second
)

// Config describes how the SIM800L is wired and which bearer it uses.
type Config struct {
	// ResetPin is the RST line, active low. Nil means not wired.
	ResetPin  hal.Pin
	ResetHold time.Duration
	// BootWait is the pause after the reset line is released.
	BootWait time.Duration

	APN      string
	User     string
	Password string

	// NetworkTimeout bounds bearer activation and payload transfer.
	NetworkTimeout time.Duration
	Logger         *zap.Logger
}

// SIM800L implements modem.Variant.
type SIM800L struct {
	cfg Config
	log *zap.Logger
}

var _ modem.Variant = (*SIM800L)(nil)

// New returns a SIM800L adapter. Zero durations take their defaults.
func New(cfg Config) (*SIM800L, error) {
	if cfg.ResetHold < 0 || cfg.BootWait < 0 || cfg.NetworkTimeout < 0 {
		return nil, fmt.Errorf("%w: negative duration", modem.ErrInvalidConfig)
	}
	if strings.ContainsRune(cfg.APN+cfg.User+cfg.Password, '"') {
		return nil, fmt.Errorf("%w: quote in bearer credentials", modem.ErrInvalidConfig)
	}
	if cfg.ResetPin == nil {
		cfg.ResetPin = hal.NopPin{}
	}
	if cfg.ResetHold == 0 {
		cfg.ResetHold = DefaultResetHold
	}
	if cfg.BootWait == 0 {
		cfg.BootWait = DefaultBootWait
	}
	if cfg.NetworkTimeout == 0 {
		cfg.NetworkTimeout = modem.DefaultNetworkTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &SIM800L{cfg: cfg, log: cfg.Logger.Named("sim800")}, nil
}

func (s *SIM800L) Name() string { return Name }

// Reset pulls RST low for ResetHold and waits BootWait for the firmware.
func (s *SIM800L) Reset(ctx context.Context) error {
	s.log.Info("reset", zap.Duration("hold", s.cfg.ResetHold))
	if err := hal.Pulse(ctx, s.cfg.ResetPin, gpio.Low, s.cfg.ResetHold); err != nil {
		return fmt.Errorf("reset pin: %w", err)
	}
	return hal.Wait(ctx, s.cfg.BootWait)
}

// PostHandshakeSetup turns off jamming detection and the initial URC
// presentation.
func (s *SIM800L) PostHandshakeSetup(ctx context.Context, ch *modem.Channel) error {
	if _, err := ch.ExpectOK(ctx, modem.Cmd(CmdJammingOff)); err != nil {
		return err
	}
	_, err := ch.ExpectOK(ctx, modem.Cmd(CmdURCOff))
	if err != nil {
		s.log.Debug("urc presentation not disabled, retrying", zap.Error(err))
		_, err = ch.ExpectOK(ctx, modem.Cmd(CmdURCOff))
	}
	return err
}

// PrepareBearer shuts any previous GPRS context, selects manual receive,
// sets the APN and brings the wireless connection up.
func (s *SIM800L) PrepareBearer(ctx context.Context, ch *modem.Channel) error {
	if _, err := ch.ExpectOK(ctx, modem.Command{Text: CmdShut, Timeout: s.cfg.NetworkTimeout}); err != nil {
		return err
	}
	if _, err := ch.ExpectOK(ctx, modem.Cmd(CmdManualRx)); err != nil {
		return err
	}

	if s.cfg.APN != "" {
		r, err := ch.ExpectOK(ctx, modem.Cmd(CmdAPNQuery))
		if err != nil {
			return err
		}
		if !r.Contains(`"` + s.cfg.APN + `"`) {
			cmd := modem.Cmdf(`AT+CSTT="%s","%s","%s"`, s.cfg.APN, s.cfg.User, s.cfg.Password)
			if _, err := ch.ExpectOK(ctx, cmd); err != nil {
				return err
			}
		}
	}

	if _, err := ch.ExpectOK(ctx, modem.Command{Text: CmdBringUp, Timeout: s.cfg.NetworkTimeout}); err != nil {
		return err
	}

	// CIFSR answers with the bare local address and no result code
	r, err := ch.Exec(ctx, modem.Command{
		Text:    CmdLocalIP,
		Timeout: s.cfg.NetworkTimeout,
		Done:    func(r at.Response) bool { return localIP(r) != "" || r.Complete() },
	})
	if err != nil {
		return err
	}
	ip := localIP(r)
	if ip == "" {
		return fmt.Errorf("%s: %w: %s", CmdLocalIP, modem.ErrProtocol, r)
	}
	s.log.Info("gprs up", zap.String("ip", ip))
	return nil
}

func localIP(r at.Response) string {
	for _, l := range r.Lines {
		if ip := net.ParseIP(l); ip != nil {
			return l
		}
	}
	return ""
}

// SessionOpen starts the TCP connection and polls CIPSTATUS until it
// reports CONNECT OK.
func (s *SIM800L) SessionOpen(ctx context.Context, ch *modem.Channel, sess modem.Session, l modem.Limits) error {
	start := modem.Cmdf(`AT+CIPSTART="TCP","%s",%d`, sess.Address, sess.Port)
	if _, err := ch.ExpectOK(ctx, start); err != nil {
		return err
	}

	status := modem.Command{
		Text: CmdStatus,
		// OK precedes the STATE line
		Done: func(r at.Response) bool {
			_, ok := at.ParseCIPStatus(r)
			return ok || r.Kind == at.KindError
		},
	}
	return modem.PollUntil(ctx, ch, status, l, func(r at.Response) bool {
		st, _ := at.ParseCIPStatus(r)
		return st == stateConnected
	})
}

func (s *SIM800L) SessionSend(ctx context.Context, ch *modem.Channel, _ modem.Session, data []byte) error {
	return modem.SendPayload(ctx, ch, fmt.Sprintf("AT+CIPSEND=%d", len(data)), data,
		modem.Limits{Timeout: s.cfg.NetworkTimeout})
}

// SessionReceive pulls at most l.MaxReceive buffered bytes with
// CIPRXGET=2.
func (s *SIM800L) SessionReceive(ctx context.Context, ch *modem.Channel, _ modem.Session, l modem.Limits) ([]byte, bool, error) {
	return modem.ReceivePayload(ctx, ch, modem.Cmdf("AT+CIPRXGET=2,%d", l.MaxReceive), at.ParseCIPRXGET, l)
}

// SessionClose closes the connection and deactivates the GPRS context. A
// failed CIPCLOSE is not fatal, CIPSHUT drops the connection anyway.
func (s *SIM800L) SessionClose(ctx context.Context, ch *modem.Channel, _ modem.Session) error {
	if _, err := ch.ExpectOK(ctx, modem.Cmd(CmdClose)); err != nil {
		s.log.Debug("close connection", zap.Error(err))
	}
	_, err := ch.ExpectOK(ctx, modem.Command{Text: CmdShut, Timeout: s.cfg.NetworkTimeout})
	return err
}

// EnableJammingDetection arms the jamming detector.
func (s *SIM800L) EnableJammingDetection(ctx context.Context, ch *modem.Channel) error {
	_, err := ch.ExpectOK(ctx, modem.Cmd(CmdJammingOn))
	return err
}

func (s *SIM800L) DisableJammingDetection(ctx context.Context, ch *modem.Channel) error {
	_, err := ch.ExpectOK(ctx, modem.Cmd(CmdJammingOff))
	return err
}

// Jammed reports whether the detector currently sees jamming.
func (s *SIM800L) Jammed(ctx context.Context, ch *modem.Channel) (bool, error) {
	r, err := ch.ExpectOK(ctx, modem.Cmd(CmdJammingQuery))
	if err != nil {
		return false, err
	}
	return r.Contains(jammedReport), nil
}
