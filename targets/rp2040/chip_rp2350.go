//go:build rp2350

package main

// TIMER0 moved on the RP2350; the QFN-80 package has 48 GPIOs.
const (
	mcuName   = "rp2350"
	timerBase = 0x400B0000
	numGPIO   = 48
)
