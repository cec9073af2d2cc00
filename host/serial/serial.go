// Package serial opens the USB CDC link to the firmware.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// ErrNoDevice is returned by Open when no device path is given.
var ErrNoDevice = errors.New("serial: no device path")

// Port is the byte stream the protocol runs over.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input.
	Flush() error
}

// Config holds serial port settings.
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; USB CDC ignores it
	Baud int

	// ReadTimeout bounds each Read; zero blocks
	ReadTimeout time.Duration
}

// DefaultConfig returns the settings for the firmware's USB CDC port.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
	}
}

type nativePort struct {
	*serial.Port
}

// Open opens the port described by cfg.
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, ErrNoDevice
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Device, err)
	}
	return nativePort{port}, nil
}
