//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"microi2c/core"
	"microi2c/protocol"
)

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *usbOutput
	transport    *protocol.Transport

	// Debug counters
	messagesReceived uint32
	messagesSent     uint32
	msgerrors        uint32

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitDebugUART()
	InitClock()

	// identify/identify_response must be registered first
	core.InitCoreCommands()
	core.InitSoftI2CCommands()
	core.GlobalDictionary().SetVersion(protocol.Version)

	core.SetLineDriver(newLineDriver())
	core.SetDebugWriter(DebugPrintln)
	core.SetDebugEnabled(debugEnabled)

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = &usbOutput{}

	transport = protocol.NewTransport(outputBuffer, handleCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetSoftI2C()
	})
	transport.SetErrorCallback(func(cmdID uint16, err error) {
		msgerrors++
		core.DebugPrintln("[CMD] " + itoa(int(cmdID)) + " failed: " + err.Error())
	})
	// ACKs go out before anything queued behind them
	transport.SetFlushCallback(writeUSB)
	core.SetGlobalTransport(transport)

	go usbReaderLoop()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			if inputBuffer.Available() > 0 {
				consumed := transport.Receive(inputBuffer.Data())
				if consumed > 0 {
					inputBuffer.Pop(consumed)
					messagesReceived++
				}
			}

			if outputBuffer.Len() > 0 {
				writeUSB()
				messagesSent++
			}
		}()

		// Yield to the reader goroutine
		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop moves bytes from USB CDC into the input FIFO.
func usbReaderLoop() {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// Data after a disconnect means a new host session
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				messagesReceived = 0
				messagesSent = 0
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{data}) == 0 {
				// Buffer full
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// handleCommand dispatches received commands to the command registry
func handleCommand(cmdID uint16, data *[]byte) error {
	return core.DispatchCommand(cmdID, data)
}

// usbOutput collects outgoing blocks until the main loop writes them.
type usbOutput struct {
	buf []byte
}

func (o *usbOutput) Write(p []byte) (int, error) {
	o.buf = append(o.buf, p...)
	return len(p), nil
}

func (o *usbOutput) Len() int {
	return len(o.buf)
}

func (o *usbOutput) Reset() {
	o.buf = o.buf[:0]
}

// writeUSB writes the pending output to USB
func writeUSB() {
	result := outputBuffer.buf
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// likely disconnect
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}

// itoa converts int to string without importing strconv (for embedded)
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	negative := i < 0
	if negative {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
