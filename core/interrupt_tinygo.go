//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts for the length of a bus transaction so
// no handler can touch the bus pins mid-frame.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
