package core

import (
	"tinygo.org/x/drivers"
)

// The software bus can back any TinyGo driver that takes a drivers.I2C.
var _ drivers.I2C = (*SoftI2C)(nil)

// NACKError reports that a device refused a data byte.
type NACKError struct {
	Index int // Position of the refused byte in the write phase
}

func (e *NACKError) Error() string {
	return "i2c: NACK received on byte " + itoa(e.Index)
}

// Unwrap makes errors.Is(err, ErrNACK) hold.
func (e *NACKError) Unwrap() error {
	return ErrNACK
}

// Tx performs a complete transaction with a 7-bit device: write w, then
// (after a repeated START) read len(r) bytes. Either slice may be empty;
// with both empty only the address is sent.
// Interrupts are masked for the whole transaction.
func (b *SoftI2C) Tx(addr uint16, w, r []byte) error {
	return b.transfer(addr, nil, w, r)
}

// WriteRegister writes buf to register reg of the device at addr.
func (b *SoftI2C) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return b.transfer(uint16(addr), []byte{reg}, buf, nil)
}

// ReadRegister reads len(buf) bytes starting at register reg.
func (b *SoftI2C) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return b.transfer(uint16(addr), []byte{reg}, nil, buf)
}

// transfer writes prefix and w in one write phase, then reads r.
func (b *SoftI2C) transfer(addr uint16, prefix, w, r []byte) error {
	if addr > 0x7F {
		return ErrInvalidAddress
	}
	a := I2CAddress(addr)

	state := disableInterrupts()
	defer restoreInterrupts(state)

	nw := len(prefix) + len(w)
	if nw > 0 || len(r) == 0 {
		if err := b.address(a, false); err != nil {
			return err
		}
		for i := 0; i < nw; i++ {
			var c byte
			if i < len(prefix) {
				c = prefix[i]
			} else {
				c = w[i-len(prefix)]
			}
			ack, err := b.Write(c)
			if err != nil {
				return b.timedOut(a, err)
			}
			RecordBusEvent(EvtWrite, a, c, ack)
			if !ack {
				return b.abort(&NACKError{Index: i})
			}
		}
	}

	if len(r) > 0 {
		if err := b.address(a, true); err != nil {
			return err
		}
		for i := range r {
			last := i == len(r)-1
			c, err := b.Read(!last)
			if err != nil {
				return b.timedOut(a, err)
			}
			r[i] = c
			RecordBusEvent(EvtRead, a, c, !last)
		}
	}

	return b.Stop()
}

// address sends a (repeated) START and the address byte.
func (b *SoftI2C) address(a I2CAddress, read bool) error {
	if err := b.Start(); err != nil {
		return b.timedOut(a, err)
	}
	rw := byte(0)
	if read {
		rw = 1
	}
	ack, err := b.Write(byte(a)<<1 | rw)
	if err != nil {
		return b.timedOut(a, err)
	}
	RecordBusEvent(EvtAddress, a, rw, ack)
	if !ack {
		return b.abort(ErrNoSuchDevice)
	}
	return nil
}

// abort releases the bus with a STOP and returns err.
func (b *SoftI2C) abort(err error) error {
	if stopErr := b.Stop(); stopErr != nil {
		return stopErr
	}
	return err
}

func (b *SoftI2C) timedOut(a I2CAddress, err error) error {
	if err == ErrBusTimeout {
		RecordBusEvent(EvtTimeout, a, 0, false)
	}
	return err
}
