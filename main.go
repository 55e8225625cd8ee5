package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"i4.energy/across/cellular/hal"
	"i4.energy/across/cellular/log"
	"i4.energy/across/cellular/modem"
	"i4.energy/across/cellular/modem/sim7080"
	"i4.energy/across/cellular/modem/sim800"
)

func main() {
	flag.String("config", "", "Path to a TOML configuration file")
	flag.String("serial-port", "/dev/ttyS0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Bool("debug", false, "Human readable development logs")
	flag.String("variant", sim800.Name, "Module variant (SIM800L, SIM7080G)")
	flag.String("control-pin", "", "GPIO of the reset pin (SIM800L) or PWRKEY (SIM7080G)")
	flag.String("apn", "", "Access point name of the data bearer")
	flag.Bool("log-responses", false, "Log every AT exchange at debug level")
	flag.Parse()

	config, err := LoadConfig(
		WithDefaults(),
		WithFile(flag.Lookup("config").Value.String()),
		WithEnv(),
		WithFlags(flag.CommandLine),
	)
	if err == nil {
		err = config.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.New(config.Debug, config.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(config, logger); err != nil {
		logger.Error("Cellular daemon failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(config *Config, logger *zap.Logger) error {
	// TX/RX are driven by the UART, only make sure the pins exist
	for _, name := range []string{config.TXPin, config.RXPin} {
		if name == "" {
			continue
		}
		if _, err := hal.Lookup(name); err != nil {
			return fmt.Errorf("uart pin: %w", err)
		}
	}

	variant, err := newVariant(config, logger)
	if err != nil {
		return err
	}

	mode := modem.DefaultMode
	mode.BaudRate = config.BaudRate
	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(modem.SerialDialer{PortName: config.SerialPort, Mode: &mode}).
		WithThresholds(config.SoftResetAt, config.GiveUpAt).
		WithLogResponses(config.LogResponses).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("modem config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := modem.New(ctx, modemConfig, variant)
	if err != nil {
		return fmt.Errorf("open modem: %w", err)
	}

	budget, _ := config.gpsBudget()
	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:    logger.Named("server"),
			Modem:     m,
			GPSBudget: budget,
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	bringUpDone := make(chan struct{})
	go func() {
		defer close(bringUpDone)
		bringUp(ctx, m, config, logger)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err = <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
		stop()
	}
	<-bringUpDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Error("Failed to gracefully shutdown server", zap.Error(serr))
	}

	logger.Info("Closing modem connection")
	if cerr := m.Close(); cerr != nil {
		logger.Error("Failed to close modem", zap.Error(cerr))
	}
	return err
}

// bringUp registers the module and, when configured, probes a TCP session.
func bringUp(ctx context.Context, m *modem.Module, config *Config, logger *zap.Logger) {
	logger.Info("Starting bring-up", zap.String("module", m.Name()))
	if err := m.BringUp(ctx); err != nil {
		logger.Error("Bring-up failed", zap.Stringer("state", m.State()), zap.Error(err))
		return
	}

	if sig, err := m.Signal(ctx); err == nil {
		logger.Info("Module ready", zap.Stringer("signal", sig.Band), zap.Int("rssi", sig.RSSI))
	}

	if config.ProbeAddress == "" {
		return
	}
	if err := probe(ctx, m, config.ProbeAddress, config.ProbePort); err != nil {
		logger.Warn("Session probe failed", zap.Error(err))
		return
	}
	logger.Info("Session probe succeeded", zap.String("address", config.ProbeAddress))
}

// probe opens and closes one session to address:port.
func probe(ctx context.Context, m *modem.Module, address string, port int) error {
	if err := m.OpenSession(ctx, address, port); err != nil {
		return err
	}
	return m.CloseSession(ctx)
}

func newVariant(config *Config, logger *zap.Logger) (modem.Variant, error) {
	pin, err := hal.Open(config.ControlPin)
	if err != nil {
		return nil, fmt.Errorf("control pin: %w", err)
	}

	switch config.Variant {
	case sim800.Name:
		v, err := sim800.New(sim800.Config{
			ResetPin: pin,
			APN:      config.APN,
			User:     config.APNUser,
			Password: config.APNPassword,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	case sim7080.Name:
		v, err := sim7080.New(sim7080.Config{
			PowerKey:     pin,
			APN:          config.APN,
			NetworkMode:  sim7080.NetworkMode(config.NetworkMode),
			LTEMode:      sim7080.LTEMode(config.LTEMode),
			ConfigureTCP: config.ConfigureTCP,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown variant %q", config.Variant)
	}
}
