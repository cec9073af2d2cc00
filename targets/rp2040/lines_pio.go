//go:build (rp2040 || rp2350) && pio

package main

import (
	"microi2c/core"
	"microi2c/targets/pio"
)

// newLineDriver hands the bus lines to a PIO state machine, which toggles
// pin directions with the output latch held low.
func newLineDriver() core.LineDriver {
	d, err := pio.NewLineDriver(numGPIO, busDelay)
	if err != nil {
		DebugPrintln("[PIO] " + err.Error() + ", using GPIO lines")
		return pinLineDriver{}
	}
	return d
}
