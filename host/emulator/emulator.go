// Package emulator runs the soft I2C firmware command layer in-process over
// a simulated bus, speaking the serial protocol on a byte stream. It lets
// the host tools and their tests work without hardware.
package emulator

import (
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"microi2c/core"
	"microi2c/protocol"
	"microi2c/sim"
)

// ErrNoSuchPin is returned when a bus is configured on pins the emulated
// board does not wire to the simulated bus.
var ErrNoSuchPin = errors.New("emulator: pin not wired to the simulated bus")

// Pins the simulated bus is wired to.
const (
	SCLPin core.GPIOPin = 5
	SDAPin core.GPIOPin = 4
)

// lineDriver hands out the two simulated lines by pin number.
type lineDriver struct {
	bus *sim.Bus
}

func (d lineDriver) OpenLine(pin core.GPIOPin) (core.Line, error) {
	switch pin {
	case SCLPin:
		return d.bus.SCL(), nil
	case SDAPin:
		return d.bus.SDA(), nil
	}
	return nil, ErrNoSuchPin
}

func (d lineDriver) Delay() core.Delayer {
	return d.bus
}

// Firmware is a running emulated board.
type Firmware struct {
	bus    *sim.Bus
	conn   io.ReadWriteCloser
	logger *zap.Logger

	transport *protocol.Transport
	done      chan struct{}
	closeOnce sync.Once
}

// Start installs the command layer over bus and serves conn until it is
// closed. The command registry and line driver are process-wide, so only
// one Firmware runs at a time.
func Start(bus *sim.Bus, conn io.ReadWriteCloser, logger *zap.Logger) *Firmware {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Firmware{
		bus:    bus,
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}

	core.InitCoreCommands()
	core.InitSoftI2CCommands()
	core.GlobalDictionary().SetVersion(protocol.Version)
	core.ResetSoftI2C()
	core.SetLineDriver(lineDriver{bus: bus})
	core.SetDebugWriter(func(msg string) {
		logger.Debug(msg)
	})

	f.transport = protocol.NewTransport(conn, func(id uint16, data *[]byte) error {
		return core.DispatchCommand(id, data)
	})
	f.transport.SetResetCallback(core.ResetSoftI2C)
	f.transport.SetErrorCallback(func(id uint16, err error) {
		name := "?"
		if cmd, ok := core.GlobalRegistry().Get(id); ok {
			name = cmd.Name
		}
		logger.Warn("command failed", zap.Uint16("id", id), zap.String("command", name), zap.Error(err))
	})
	core.SetGlobalTransport(f.transport)

	go f.serve()
	return f
}

func (f *Firmware) serve() {
	defer close(f.done)

	buf := make([]byte, protocol.BlockMax)
	fifo := protocol.NewFifoBuffer(4 * protocol.BlockMax)
	for {
		n, err := f.conn.Read(buf[:min(len(buf), fifo.Free())])
		if n > 0 {
			fifo.Write(buf[:n])
			fifo.Pop(f.transport.Receive(fifo.Data()))
		}
		if err != nil {
			f.logger.Debug("emulator link closed", zap.Error(err))
			return
		}
	}
}

// Bus returns the simulated bus the firmware drives.
func (f *Firmware) Bus() *sim.Bus {
	return f.bus
}

// Close closes the link and waits for the firmware loop to exit.
func (f *Firmware) Close() error {
	var err error
	f.closeOnce.Do(func() {
		err = f.conn.Close()
		<-f.done
		core.ResetSoftI2C()
		core.SetGlobalTransport(nil)
		core.SetDebugWriter(func(string) {})
	})
	return err
}
