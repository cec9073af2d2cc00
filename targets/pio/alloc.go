//go:build rp2040 || rp2350

package pio

import "errors"

// ErrNoStateMachine is returned when every PIO state machine is taken.
var ErrNoStateMachine = errors.New("pio: no free state machine")

var (
	// RP2040 has 2 PIO blocks (PIO0, PIO1) with 4 state machines each
	pioAllocations = [2][4]bool{} // [pioNum][smNum]
	nextPIONum     = uint8(0)
	nextSMNum      = uint8(0)
)

// allocatePIO reserves a state machine round-robin across both blocks.
// Returns (pioNum, smNum, ok)
func allocatePIO() (uint8, uint8, bool) {
	for i := 0; i < 8; i++ {
		pioNum := nextPIONum
		smNum := nextSMNum

		nextSMNum++
		if nextSMNum >= 4 {
			nextSMNum = 0
			nextPIONum = (nextPIONum + 1) % 2
		}

		if !pioAllocations[pioNum][smNum] {
			pioAllocations[pioNum][smNum] = true
			return pioNum, smNum, true
		}
	}
	return 0, 0, false
}

// releasePIO returns a state machine to the pool.
func releasePIO(pioNum, smNum uint8) {
	pioAllocations[pioNum][smNum] = false
}
