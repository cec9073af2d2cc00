//go:build rp2040 || rp2350

package main

import "machine"

// InitUSB configures USB CDC-ACM; TinyGo's runtime supplies the descriptors.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// USBAvailable returns the number of received bytes waiting.
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads one received byte.
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes sends data to the host.
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
