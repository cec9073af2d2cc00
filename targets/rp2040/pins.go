//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"

	"microi2c/core"
)

var errInvalidPin = errors.New("invalid gpio pin")

// pinLine emulates an open-drain output by switching direction: input
// with pull-up to release, output low to drive.
type pinLine struct {
	pin machine.Pin
}

func (l pinLine) Release() {
	l.pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
}

func (l pinLine) DriveLow() {
	l.pin.Low()
	l.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	l.pin.Low()
}

func (l pinLine) Sample() bool {
	return l.pin.Get()
}

// pinLineDriver opens GPIO pins as open-drain lines.
type pinLineDriver struct{}

func (pinLineDriver) OpenLine(pin core.GPIOPin) (core.Line, error) {
	if pin >= numGPIO {
		return nil, errInvalidPin
	}
	l := pinLine{pin: machine.Pin(pin)}
	l.Release()
	return l, nil
}

func (pinLineDriver) Delay() core.Delayer {
	return busDelay
}
