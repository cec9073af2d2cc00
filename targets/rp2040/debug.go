//go:build rp2040 || rp2350

package main

import "machine"

// Debug output goes to UART0 (GP0 TX, GP1 RX) so it never mixes with the
// protocol stream on USB.
var (
	debugUART    *machine.UART
	debugEnabled bool
)

// InitDebugUART configures UART0 at 115200 baud.
func InitDebugUART() {
	debugUART = machine.UART0
	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	if err != nil {
		debugEnabled = false
		return
	}
	debugEnabled = true
	DebugPrintln("=== microi2c " + itoa(int(machine.CPUFrequency()/1000000)) + " MHz ===")
}

// DebugPrintln writes a line to the debug UART.
func DebugPrintln(s string) {
	if !debugEnabled || debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
