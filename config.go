package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"

	"i4.energy/across/cellular/modem/sim7080"
	"i4.energy/across/cellular/modem/sim800"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `toml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyS0")
	SerialPort string `toml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `toml:"baud_rate"`
	// TXPin and RXPin name the UART pins, checked at startup when set
	TXPin string `toml:"tx_pin"`
	RXPin string `toml:"rx_pin"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `toml:"log_level"`
	// Debug selects human readable logs
	Debug bool `toml:"debug"`

	// Variant is the module type, "SIM800L" or "SIM7080G"
	Variant string `toml:"variant"`
	// ControlPin is the reset pin of a SIM800L or the PWRKEY of a SIM7080G
	ControlPin string `toml:"control_pin"`

	APN         string `toml:"apn"`
	APNUser     string `toml:"apn_user"`
	APNPassword string `toml:"apn_password"`
	// NetworkMode and LTEMode select the SIM7080G radio, 0 leaves them alone
	NetworkMode  int  `toml:"network_mode"`
	LTEMode      int  `toml:"lte_mode"`
	ConfigureTCP bool `toml:"configure_tcp"`

	SoftResetAt  int  `toml:"soft_reset_at"`
	GiveUpAt     int  `toml:"give_up_at"`
	LogResponses bool `toml:"log_responses"`

	// GPSBudget caps a GPS request, as a duration string (e.g. "2m")
	GPSBudget string `toml:"gps_budget"`

	// ProbeAddress and ProbePort, when set, are dialed once after bring-up
	ProbeAddress string `toml:"probe_address"`
	ProbePort    int    `toml:"probe_port"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyS0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.Variant = sim800.Name
		c.SoftResetAt = 5
		c.GiveUpAt = 20
		c.GPSBudget = "2m"
		return nil
	}
}

// WithFile overlays the TOML file at path. An empty path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if variant := os.Getenv("MODEM_VARIANT"); variant != "" {
			c.Variant = variant
		}

		if pin := os.Getenv("CONTROL_PIN"); pin != "" {
			c.ControlPin = pin
		}

		if apn := os.Getenv("APN"); apn != "" {
			c.APN = apn
		}

		if user := os.Getenv("APN_USER"); user != "" {
			c.APNUser = user
		}

		if password := os.Getenv("APN_PASSWORD"); password != "" {
			c.APNPassword = password
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "debug":
				c.Debug = f.Value.String() == "true"
			case "variant":
				c.Variant = f.Value.String()
			case "control-pin":
				c.ControlPin = f.Value.String()
			case "apn":
				c.APN = f.Value.String()
			case "log-responses":
				c.LogResponses = f.Value.String() == "true"
			}
		})
		return nil
	}
}

var (
	baudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800}
	variants  = []string{sim800.Name, sim7080.Name}
)

// Validate checks the values that cannot be caught when the modem is built.
func (c *Config) Validate() error {
	var errs []error
	if c.SerialPort == "" {
		errs = append(errs, errors.New("serial port is required"))
	}
	if !slices.Contains(baudRates, c.BaudRate) {
		errs = append(errs, fmt.Errorf("unsupported baud rate %d", c.BaudRate))
	}
	if !slices.Contains(variants, c.Variant) {
		errs = append(errs, fmt.Errorf("unknown variant %q, want one of %v", c.Variant, variants))
	}
	if c.SoftResetAt < 0 || c.GiveUpAt < 1 || (c.SoftResetAt > 0 && c.GiveUpAt <= c.SoftResetAt) {
		errs = append(errs, fmt.Errorf("invalid thresholds: soft reset at %d, give up at %d", c.SoftResetAt, c.GiveUpAt))
	}
	if _, err := c.gpsBudget(); err != nil {
		errs = append(errs, err)
	}
	if c.ProbeAddress != "" && (c.ProbePort < 1 || c.ProbePort > 65535) {
		errs = append(errs, fmt.Errorf("invalid probe port %d", c.ProbePort))
	}
	return multierr.Combine(errs...)
}

func (c *Config) gpsBudget() (time.Duration, error) {
	d, err := time.ParseDuration(c.GPSBudget)
	if err != nil {
		return 0, fmt.Errorf("gps budget: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("gps budget must be positive, got %s", d)
	}
	return d, nil
}
