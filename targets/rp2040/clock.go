//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"

	"microi2c/core"
)

// timeRawL of the 1 MHz TIMER peripheral (unlatched low word)
var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerBase + 0x28)))

// InitClock publishes the clock constants.
func InitClock() {
	core.RegisterConstant("MCU", mcuName)
	core.RegisterConstant("CLOCK_FREQ", uint32(1000000))
}

// timerDelay spins on the hardware microsecond counter. Wrapping
// subtraction keeps it correct across the 32-bit rollover.
func timerDelay(us uint32) {
	if us == 0 {
		return
	}
	start := timerRAWL.Get()
	for timerRAWL.Get()-start < us {
	}
}

// busDelay is the delay primitive every software bus uses.
var busDelay core.Delayer = core.DelayFunc(timerDelay)
