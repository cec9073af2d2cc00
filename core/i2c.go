// Soft I2C firmware commands
// Exposes configured software buses to the host: configure by pin pair,
// scan, write and register read.
package core

import (
	"errors"

	"microi2c/protocol"
)

// Status codes carried in soft_i2c_*_response messages.
const (
	StatusOK           = 0
	StatusNoSuchDevice = 1
	StatusNACK         = 2
	StatusBusTimeout   = 3
	StatusOther        = 4
)

// MaxTransfer bounds scan results and read lengths so a response always
// fits in one protocol block.
const MaxTransfer = 48

// SoftI2CBus is one configured software bus.
type SoftI2CBus struct {
	OID uint8
	SCL GPIOPin
	SDA GPIOPin
	Bus *SoftI2C
}

var (
	softBuses   = make(map[uint8]*SoftI2CBus)
	claimedPins = make(map[GPIOPin]uint8)
)

// InitSoftI2CCommands registers the soft I2C commands and responses.
func InitSoftI2CCommands() {
	RegisterCommand("config_soft_i2c",
		"oid=%c scl_pin=%u sda_pin=%u delay_us=%u stretch_limit_us=%u", handleConfigSoftI2C)

	RegisterCommand("soft_i2c_scan", "oid=%c capacity=%c", handleSoftI2CScan)
	RegisterResponse("soft_i2c_scan_response", "oid=%c status=%c count=%c addrs=%*s")

	RegisterCommand("soft_i2c_write", "oid=%c addr=%c data=%*s", handleSoftI2CWrite)
	RegisterResponse("soft_i2c_write_response", "oid=%c status=%c")

	RegisterCommand("soft_i2c_read", "oid=%c addr=%c reg=%*s read_len=%c", handleSoftI2CRead)
	RegisterResponse("soft_i2c_read_response", "oid=%c status=%c data=%*s")

	RegisterConstant("SOFT_I2C_MAX_TRANSFER", MaxTransfer)
}

// StatusOf maps a bus error to its wire status code.
func StatusOf(err error) uint8 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNoSuchDevice):
		return StatusNoSuchDevice
	case errors.Is(err, ErrNACK):
		return StatusNACK
	case errors.Is(err, ErrBusTimeout):
		return StatusBusTimeout
	default:
		return StatusOther
	}
}

// busStatus is StatusOf for a finished bus operation. A stretch timeout
// also dumps the bus trace through the debug writer.
func busStatus(err error) uint8 {
	status := StatusOf(err)
	if status == StatusBusTimeout {
		DumpBusTrace()
	}
	return status
}

// ConfigureSoftI2C opens the two pins through the line driver and puts a
// new bus under oid. Reconfiguring an oid replaces its old bus once both
// new lines are open; if opening fails the old bus keeps its pins.
func ConfigureSoftI2C(oid uint8, scl, sda GPIOPin, cfg SoftI2CConfig) (*SoftI2CBus, error) {
	if scl == sda {
		return nil, ErrPinInUse
	}
	for _, pin := range []GPIOPin{scl, sda} {
		if owner, ok := claimedPins[pin]; ok && owner != oid {
			return nil, ErrPinInUse
		}
	}

	driver := MustLines()
	sclLine, err := driver.OpenLine(scl)
	if err != nil {
		return nil, err
	}
	sdaLine, err := driver.OpenLine(sda)
	if err != nil {
		sclLine.Release()
		return nil, err
	}

	if old, ok := softBuses[oid]; ok {
		releaseSoftI2C(old)
	}

	b := &SoftI2CBus{
		OID: oid,
		SCL: scl,
		SDA: sda,
		Bus: NewSoftI2C(sclLine, sdaLine, driver.Delay(), cfg),
	}
	softBuses[oid] = b
	claimedPins[scl] = oid
	claimedPins[sda] = oid

	if err := b.Bus.Begin(); err != nil {
		DebugPrintln("[I2C] bus " + itoa(int(oid)) + " did not go idle: " + err.Error())
		return b, err
	}
	return b, nil
}

// LookupSoftI2C returns the bus configured under oid.
func LookupSoftI2C(oid uint8) (*SoftI2CBus, error) {
	b, ok := softBuses[oid]
	if !ok {
		return nil, ErrUnknownOID
	}
	return b, nil
}

// ResetSoftI2C forgets every configured bus and releases its lines.
func ResetSoftI2C() {
	for oid, b := range softBuses {
		releaseSoftI2C(b)
		delete(softBuses, oid)
	}
}

func releaseSoftI2C(b *SoftI2CBus) {
	b.Bus.scl.Release()
	b.Bus.sda.Release()
	delete(claimedPins, b.SCL)
	delete(claimedPins, b.SDA)
}

// handleConfigSoftI2C
// Format: config_soft_i2c oid=%c scl_pin=%u sda_pin=%u delay_us=%u stretch_limit_us=%u
func handleConfigSoftI2C(data *[]byte) error {
	var v [5]uint32
	for i := range v {
		n, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		v[i] = n
	}

	cfg := DefaultSoftI2CConfig()
	cfg.DelayMicros = v[3]
	cfg.ClockStretchLimit = v[4]
	_, err := ConfigureSoftI2C(uint8(v[0]), GPIOPin(v[1]), GPIOPin(v[2]), cfg)
	if err == ErrBusTimeout {
		// the bus exists; operations report the stuck line
		return nil
	}
	return err
}

// handleSoftI2CScan
// Format: soft_i2c_scan oid=%c capacity=%c
func handleSoftI2CScan(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	capacity, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	b, err := LookupSoftI2C(uint8(oid))
	if err != nil {
		return err
	}

	if capacity > MaxTransfer {
		capacity = MaxTransfer
	}
	var found [MaxTransfer]I2CAddress
	count, scanErr := b.Bus.Scan(found[:capacity], int(capacity))

	stored := count
	if stored > int(capacity) {
		stored = int(capacity)
	}
	addrs := make([]byte, stored)
	for i := range addrs {
		addrs[i] = byte(found[i])
	}

	var args protocol.Args
	args.Uint(oid).Uint(uint32(busStatus(scanErr))).Uint(uint32(count)).Bytes(addrs)
	return SendResponse("soft_i2c_scan_response", &args)
}

// handleSoftI2CWrite
// Format: soft_i2c_write oid=%c addr=%c data=%*s
func handleSoftI2CWrite(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	addr, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	payload, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}
	b, err := LookupSoftI2C(uint8(oid))
	if err != nil {
		return err
	}

	txErr := b.Bus.Tx(uint16(addr), payload, nil)

	var args protocol.Args
	args.Uint(oid).Uint(uint32(busStatus(txErr)))
	return SendResponse("soft_i2c_write_response", &args)
}

// handleSoftI2CRead writes the optional register bytes, then reads
// read_len bytes after a repeated start.
// Format: soft_i2c_read oid=%c addr=%c reg=%*s read_len=%c
func handleSoftI2CRead(data *[]byte) error {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	addr, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	reg, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}
	readLen, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	b, err := LookupSoftI2C(uint8(oid))
	if err != nil {
		return err
	}

	var status uint8
	var buf []byte
	if readLen > MaxTransfer {
		status = StatusOther
	} else {
		buf = make([]byte, readLen)
		if txErr := b.Bus.transfer(uint16(addr), reg, nil, buf); txErr != nil {
			status = busStatus(txErr)
			buf = nil
		}
	}

	var args protocol.Args
	args.Uint(oid).Uint(uint32(status)).Bytes(buf)
	return SendResponse("soft_i2c_read_response", &args)
}
