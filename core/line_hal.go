package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// Line is one open-drain bus line (SCL or SDA) as seen by the bus master.
// A master never drives a line high: high is always the external pull-up
// after Release.
type Line interface {
	// Release stops driving the line and lets the pull-up (or another
	// device) set its level.
	Release()

	// DriveLow actively pulls the line to logic 0.
	DriveLow()

	// Sample returns the instantaneous level of the line.
	Sample() bool
}

// Delayer waits approximately the given number of microseconds.
type Delayer interface {
	DelayMicroseconds(us uint32)
}

// DelayFunc adapts a plain function to the Delayer interface.
type DelayFunc func(us uint32)

// DelayMicroseconds calls f(us).
func (f DelayFunc) DelayMicroseconds(us uint32) {
	f(us)
}

// LineDriver is the abstract line factory that core code uses.
// Platform-specific implementations decide how a pin becomes an
// open-drain line (direction switching, PIO, simulation).
type LineDriver interface {
	// OpenLine configures pin as a released open-drain line.
	// Returns error if the pin is invalid or cannot be configured.
	OpenLine(pin GPIOPin) (Line, error)

	// Delay returns the delay primitive matching this platform.
	Delay() Delayer
}

// Global singleton used by core code.
var lineDriver LineDriver

// SetLineDriver is called by target-specific code to register its driver.
func SetLineDriver(d LineDriver) {
	lineDriver = d
}

// MustLines returns the configured driver or panics if missing.
func MustLines() LineDriver {
	if lineDriver == nil {
		panic("line driver not configured")
	}
	return lineDriver
}
