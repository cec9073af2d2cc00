package mcu

import "errors"

var (
	// ErrNoDictionary is returned by bus operations before Identify.
	ErrNoDictionary = errors.New("mcu: dictionary not loaded")

	// ErrUnknownCommand is returned when the firmware does not serve a message.
	ErrUnknownCommand = errors.New("mcu: message not in dictionary")

	// ErrBadResponse is returned for responses that do not decode.
	ErrBadResponse = errors.New("mcu: malformed response")

	// ErrTransferTooLarge is returned for reads or writes above the
	// firmware's SOFT_I2C_MAX_TRANSFER.
	ErrTransferTooLarge = errors.New("mcu: transfer exceeds firmware limit")

	// Bus outcomes reported in response status codes.
	ErrNoSuchDevice = errors.New("mcu: no device at address")
	ErrNACK         = errors.New("mcu: data byte not acknowledged")
	ErrBusTimeout   = errors.New("mcu: bus timeout")
	ErrBusFailure   = errors.New("mcu: bus operation failed")
)

// Status is the outcome code carried in soft_i2c_*_response messages.
type Status uint8

const (
	StatusOK Status = iota
	StatusNoSuchDevice
	StatusNACK
	StatusBusTimeout
	StatusOther
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoSuchDevice:
		return "no_device"
	case StatusNACK:
		return "nack"
	case StatusBusTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// Err returns nil for StatusOK and the matching sentinel otherwise.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusNoSuchDevice:
		return ErrNoSuchDevice
	case StatusNACK:
		return ErrNACK
	case StatusBusTimeout:
		return ErrBusTimeout
	default:
		return ErrBusFailure
	}
}
