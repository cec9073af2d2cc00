// Software (bit-banged) I2C master
// Drives two open-drain lines through timed transitions to emulate the
// I2C framing: start/stop conditions, MSB-first bytes and the ACK bit.
package core

// I2CAddress is a 7-bit I2C device address.
type I2CAddress uint8

// Scan defaults: 0-7 and 120-127 are reserved address ranges.
const (
	ScanFirstAddress I2CAddress = 8
	ScanLastAddress  I2CAddress = 119
)

// stretchPollMicros is the sampling interval while SCL is held low by a device.
const stretchPollMicros = 1

// SoftI2CConfig holds the timing and scan parameters of a software bus.
type SoftI2CConfig struct {
	// DelayMicros is the wait placed around every line transition.
	// It sets the bus speed: 5 us gives roughly 50-100 kHz.
	DelayMicros uint32

	// ClockStretchLimit bounds how long a device may hold SCL low, in
	// microseconds. Zero waits forever.
	ClockStretchLimit uint32

	// ScanSettleMicros is the pause after each scan probe.
	ScanSettleMicros uint32

	// ScanFirst and ScanLast bound the scanned address range (inclusive).
	ScanFirst I2CAddress
	ScanLast  I2CAddress
}

// DefaultSoftI2CConfig returns the classic timing: 5 us per step, 100 us
// between scan probes, addresses 8..119 and no stretch limit.
func DefaultSoftI2CConfig() SoftI2CConfig {
	return SoftI2CConfig{
		DelayMicros:      5,
		ScanSettleMicros: 100,
		ScanFirst:        ScanFirstAddress,
		ScanLast:         ScanLastAddress,
	}
}

// SoftI2C is a single-master I2C bus driven entirely in software.
// It owns its two lines exclusively; no other code may touch them while a
// transaction is running.
type SoftI2C struct {
	scl   Line
	sda   Line
	delay Delayer
	cfg   SoftI2CConfig
}

// NewSoftI2C creates a bus over the given lines. A config with an empty
// scan range gets the default 8..119 range.
func NewSoftI2C(scl, sda Line, delay Delayer, cfg SoftI2CConfig) *SoftI2C {
	if cfg.ScanFirst == 0 && cfg.ScanLast == 0 {
		cfg.ScanFirst = ScanFirstAddress
		cfg.ScanLast = ScanLastAddress
	}
	return &SoftI2C{
		scl:   scl,
		sda:   sda,
		delay: delay,
		cfg:   cfg,
	}
}

// Config returns the bus configuration.
func (b *SoftI2C) Config() SoftI2CConfig {
	return b.cfg
}

// SetDelay changes the per-transition delay (bus speed).
func (b *SoftI2C) SetDelay(us uint32) {
	b.cfg.DelayMicros = us
}

// Begin puts the bus in the idle state: both lines released and SCL
// confirmed high.
func (b *SoftI2C) Begin() error {
	b.sda.Release()
	return b.sclHighWait()
}

// Start generates a START (or repeated START) condition: SDA falls while
// SCL is high.
func (b *SoftI2C) Start() error {
	b.sda.Release()
	b.wait()
	if err := b.sclHighWait(); err != nil {
		return err
	}
	b.wait()
	b.sda.DriveLow()
	b.wait()
	b.scl.DriveLow()
	b.wait()
	return nil
}

// Stop generates a STOP condition (SDA rises while SCL is high) and leaves
// both lines released.
func (b *SoftI2C) Stop() error {
	b.scl.DriveLow()
	b.wait()
	b.sda.DriveLow()
	b.wait()
	if err := b.sclHighWait(); err != nil {
		return err
	}
	b.wait()
	b.sda.Release()
	b.wait()
	return nil
}

// Write clocks out one byte MSB first and reads the ACK bit.
// It returns true if the device pulled SDA low on the ninth clock.
// A NACK is not an error; retry policy belongs to the caller.
func (b *SoftI2C) Write(data byte) (bool, error) {
	for i := 0; i < 8; i++ {
		b.scl.DriveLow()
		b.setSDA(data&0x80 != 0)
		b.wait()
		if err := b.sclHighWait(); err != nil {
			return false, err
		}
		b.wait()
		data <<= 1
	}

	// ACK clock: hand SDA to the device
	b.scl.DriveLow()
	b.sda.Release()
	b.wait()
	if err := b.sclHighWait(); err != nil {
		return false, err
	}
	b.wait()
	ack := !b.sda.Sample()
	b.scl.DriveLow()
	b.wait()
	return ack, nil
}

// Read clocks in one byte MSB first, then sends ACK (more bytes wanted) or
// NACK (last byte) on the ninth clock.
func (b *SoftI2C) Read(ack bool) (byte, error) {
	var data byte
	b.sda.Release()
	for i := 0; i < 8; i++ {
		b.scl.DriveLow()
		b.wait()
		if err := b.sclHighWait(); err != nil {
			return data, err
		}
		b.wait()
		data <<= 1
		if b.sda.Sample() {
			data |= 1
		}
	}

	b.scl.DriveLow()
	b.setSDA(!ack)
	b.wait()
	if err := b.sclHighWait(); err != nil {
		return data, err
	}
	b.wait()
	b.scl.DriveLow()
	b.wait()
	b.sda.Release()
	return data, nil
}

// setSDA emulates open drain: release for 1, drive low for 0.
func (b *SoftI2C) setSDA(high bool) {
	if high {
		b.sda.Release()
	} else {
		b.sda.DriveLow()
	}
}

// sclHighWait releases SCL and waits until it actually reads high, so a
// device stretching the clock stalls the master.
func (b *SoftI2C) sclHighWait() error {
	b.scl.Release()
	var waited uint32
	for !b.scl.Sample() {
		if b.cfg.ClockStretchLimit != 0 && waited >= b.cfg.ClockStretchLimit {
			return ErrBusTimeout
		}
		b.delay.DelayMicroseconds(stretchPollMicros)
		waited += stretchPollMicros
	}
	return nil
}

func (b *SoftI2C) wait() {
	b.delay.DelayMicroseconds(b.cfg.DelayMicros)
}
