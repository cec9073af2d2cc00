package core

import "errors"

var (
	// ErrBusTimeout signals that SCL stayed low longer than the configured
	// clock-stretch limit. The bus is left in an undefined state until the
	// next Start or Stop.
	ErrBusTimeout = errors.New("i2c: clock stretch timeout")

	// ErrNACK signals that a device did not ACK a data byte.
	ErrNACK = errors.New("i2c: NACK received")

	// ErrNoSuchDevice signals that no device ACKed its address.
	ErrNoSuchDevice = errors.New("i2c: no such device")

	// ErrInvalidAddress is returned for addresses that do not fit in 7 bits.
	ErrInvalidAddress = errors.New("i2c: invalid 7-bit address")

	// ErrPinInUse is returned when a pin is already owned by a configured bus.
	ErrPinInUse = errors.New("i2c: pin already in use")

	// ErrUnknownOID is returned by command handlers for unconfigured objects.
	ErrUnknownOID = errors.New("unknown oid")
)
