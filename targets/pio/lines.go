//go:build rp2040 || rp2350

// Package pio drives open-drain bus lines through an RP2040 PIO state
// machine. The output latch of every line is held at 0; releasing and
// driving a line only flips its pin direction, so the master can never
// push a line high.
package pio

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"microi2c/core"
)

var errInvalidPin = errors.New("pio: invalid gpio pin")

// LineDriver hands out lines that share one state machine. Pin direction
// changes are executed as forced SET instructions, so the state machine
// never needs to run a program.
type LineDriver struct {
	pio   *rp2pio.PIO
	sm    rp2pio.StateMachine
	pins  uint32
	delay core.Delayer
}

// NewLineDriver claims a state machine for lines on pins below numPins.
func NewLineDriver(numPins uint32, delay core.Delayer) (*LineDriver, error) {
	pioNum, smNum, ok := allocatePIO()
	if !ok {
		return nil, ErrNoStateMachine
	}

	pioHW := rp2pio.PIO0
	if pioNum == 1 {
		pioHW = rp2pio.PIO1
	}
	sm := pioHW.StateMachine(smNum)
	if !sm.TryClaim() {
		releasePIO(pioNum, smNum)
		return nil, ErrNoStateMachine
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	sm.Init(0, cfg)
	sm.SetEnabled(false)

	return &LineDriver{
		pio:   pioHW,
		sm:    sm,
		pins:  numPins,
		delay: delay,
	}, nil
}

// OpenLine hands pin to the PIO block and releases it.
func (d *LineDriver) OpenLine(pin core.GPIOPin) (core.Line, error) {
	if uint32(pin) >= d.pins {
		return nil, errInvalidPin
	}
	p := machine.Pin(pin)

	// pindir first so the pin floats before PIO takes it
	d.sm.SetPindirsConsecutive(p, 1, false)
	d.sm.SetPinsConsecutive(p, 1, false)
	p.Configure(machine.PinConfig{Mode: d.pio.PinMode()})

	return &line{sm: d.sm, pin: p}, nil
}

// Delay returns the delay primitive the driver was built with.
func (d *LineDriver) Delay() core.Delayer {
	return d.delay
}

type line struct {
	sm  rp2pio.StateMachine
	pin machine.Pin
}

func (l *line) Release() {
	l.sm.SetPindirsConsecutive(l.pin, 1, false)
}

func (l *line) DriveLow() {
	l.sm.SetPindirsConsecutive(l.pin, 1, true)
}

func (l *line) Sample() bool {
	return l.pin.Get()
}
