//go:build (rp2040 || rp2350) && !pio

package main

import "microi2c/core"

func newLineDriver() core.LineDriver {
	return pinLineDriver{}
}
