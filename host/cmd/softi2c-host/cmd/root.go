package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"microi2c/host/config"
	"microi2c/host/emulator"
	"microi2c/host/logging"
	"microi2c/host/mcu"
	"microi2c/host/serial"
	"microi2c/protocol"
	"microi2c/sim"
)

var (
	// Global flags
	cfgFile    string
	verbose    bool
	device     string
	emulate    bool
	simDevices []string
	stretchUS  uint32
)

var rootCmd = &cobra.Command{
	Use:   "softi2c-host",
	Short: "Host tool for the soft I2C firmware",
	Long: `Talks to a board running the soft I2C firmware over USB serial:
configures a bit-banged bus on two pins, scans it, and reads or writes
devices on it. --emulate runs the same firmware in-process over a
simulated bus instead.

Examples:
  softi2c-host scan --device /dev/ttyACM0
  softi2c-host scan --emulate --devices 0x20,0x68 --publish
  softi2c-host read --addr 0x68 --reg 00 --len 7
  softi2c-host write --addr 0x50 --data 1000ff
  softi2c-host sim --devices 0x3c --stretch-us 40`,
	Version:      protocol.Version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&device, "device", "d", "", "serial device (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&emulate, "emulate", false,
		"run the firmware in-process over a simulated bus")
	rootCmd.PersistentFlags().StringSliceVar(&simDevices, "devices", nil,
		"simulated device addresses (hex, e.g. 0x20,0x68)")
	rootCmd.PersistentFlags().Uint32Var(&stretchUS, "stretch-us", 0,
		"simulated devices hold SCL low this long after each byte")
}

// loadConfig reads the config file and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if device != "" {
		cfg.Serial.Device = device
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// parseAddr parses a 7-bit address in any Go integer syntax.
func parseAddr(s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil || v > 0x7F {
		return 0, fmt.Errorf("invalid 7-bit address %q", s)
	}
	return uint8(v), nil
}

// newSimBus builds a simulated bus with a register device per address.
func newSimBus(addrs []string, stretch uint32) (*sim.Bus, error) {
	bus := sim.NewBus()
	for _, s := range addrs {
		a, err := parseAddr(s)
		if err != nil {
			return nil, err
		}
		dev := sim.NewDevice(a)
		dev.StretchMicros = stretch
		bus.Attach(dev)
	}
	return bus, nil
}

// session is an identified firmware connection with the configured bus set up.
type session struct {
	cfg    *config.Config
	log    *zap.Logger
	client *mcu.Client
	fw     *emulator.Firmware
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg: cfg,
		log: logging.New(cfg.Logging, protocol.Version),
	}
	opts := []mcu.Option{
		mcu.WithLogger(s.log),
		mcu.WithTimeout(cfg.CommandTimeout()),
	}

	if emulate {
		bus, err := newSimBus(simDevices, stretchUS)
		if err != nil {
			return nil, err
		}
		hostEnd, devEnd := net.Pipe()
		s.fw = emulator.Start(bus, devEnd, s.log.Named("emulator"))
		s.client = mcu.New(hostEnd, opts...)
		cfg.Bus.SCLPin = uint32(emulator.SCLPin)
		cfg.Bus.SDAPin = uint32(emulator.SDAPin)
	} else {
		s.client, err = mcu.Open(&serial.Config{
			Device:      cfg.Serial.Device,
			Baud:        cfg.Serial.Baud,
			ReadTimeout: serial.DefaultConfig("").ReadTimeout,
		}, opts...)
		if err != nil {
			return nil, err
		}
	}

	if err := s.client.Identify(ctx); err != nil {
		s.Close()
		return nil, err
	}
	err = s.client.ConfigureBus(ctx, mcu.BusConfig{
		OID:            uint8(cfg.Bus.OID),
		SCLPin:         cfg.Bus.SCLPin,
		SDAPin:         cfg.Bus.SDAPin,
		DelayUS:        cfg.Bus.DelayUS,
		StretchLimitUS: cfg.Bus.StretchLimitUS,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("configuring bus: %w", err)
	}
	return s, nil
}

func (s *session) oid() uint8 {
	return uint8(s.cfg.Bus.OID)
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		s.log.Debug("closing link", zap.Error(err))
	}
	if s.fw != nil {
		s.fw.Close()
	}
	_ = s.log.Sync()
}
