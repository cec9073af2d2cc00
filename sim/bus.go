// Package sim models an open-drain I2C bus in memory so the bit-banged
// master can be exercised without hardware.
//
// Every participant (the master through its two Line handles, each attached
// Device, and injected faults) can only pull a line low; the resolved level
// is the wired AND of all of them. Time is virtual: it only moves when the
// master calls DelayMicroseconds, which is also when stretched clocks are
// released.
package sim

// LineID selects one of the two bus lines.
type LineID int

const (
	SCL LineID = iota
	SDA
)

func (id LineID) String() string {
	if id == SCL {
		return "SCL"
	}
	return "SDA"
}

// EventKind classifies bus observations.
type EventKind uint8

const (
	EventStart EventKind = iota + 1 // SDA fell while SCL high
	EventStop                       // SDA rose while SCL high
	EventBit                        // SCL rose; Value is the SDA level
)

// Event is one observation made by the bus monitor.
type Event struct {
	At    uint64 // Virtual time in microseconds
	Kind  EventKind
	Value bool
}

// Bus is a virtual two-wire bus with pull-ups on both lines.
type Bus struct {
	now       uint64
	masterLow [2]bool
	faultLow  [2]bool
	level     [2]bool
	devices   []*Device
	events    []Event
	settling  bool

	scl *Line
	sda *Line
}

// NewBus returns an idle bus: both lines pulled high, nothing attached.
func NewBus() *Bus {
	b := &Bus{level: [2]bool{true, true}}
	b.scl = &Line{bus: b, id: SCL}
	b.sda = &Line{bus: b, id: SDA}
	return b
}

// Attach connects a device to the bus.
func (b *Bus) Attach(devices ...*Device) {
	for _, d := range devices {
		d.bus = b
		b.devices = append(b.devices, d)
	}
}

// SCL returns the master's handle on the clock line.
func (b *Bus) SCL() *Line {
	return b.scl
}

// SDA returns the master's handle on the data line.
func (b *Bus) SDA() *Line {
	return b.sda
}

// Now returns the virtual time in microseconds.
func (b *Bus) Now() uint64 {
	return b.now
}

// Level returns the resolved level of a line.
func (b *Bus) Level(id LineID) bool {
	return b.level[id]
}

// MasterDriving reports whether the master is pulling the line low.
func (b *Bus) MasterDriving(id LineID) bool {
	return b.masterLow[id]
}

// Idle reports whether both lines are high and the master drives neither.
func (b *Bus) Idle() bool {
	return b.level[SCL] && b.level[SDA] && !b.masterLow[SCL] && !b.masterLow[SDA]
}

// Fault holds a line low (stuck) or clears the fault.
func (b *Bus) Fault(id LineID, low bool) {
	b.faultLow[id] = low
	b.settle()
}

// Events returns a copy of the bus monitor log.
func (b *Bus) Events() []Event {
	return append([]Event(nil), b.events...)
}

// ResetEvents clears the bus monitor log.
func (b *Bus) ResetEvents() {
	b.events = b.events[:0]
}

// DelayMicroseconds advances virtual time, releasing any stretched clock
// whose hold time expires on the way.
func (b *Bus) DelayMicroseconds(us uint32) {
	target := b.now + uint64(us)
	for {
		d, at := b.nextRelease()
		if d == nil || at > target {
			break
		}
		if at > b.now {
			b.now = at
		}
		d.releaseClock()
	}
	b.now = target
}

func (b *Bus) nextRelease() (*Device, uint64) {
	var next *Device
	var at uint64
	for _, d := range b.devices {
		if !d.holdSCL {
			continue
		}
		if next == nil || d.releaseAt < at {
			next = d
			at = d.releaseAt
		}
	}
	return next, at
}

func (b *Bus) setMaster(id LineID, low bool) {
	b.masterLow[id] = low
	b.settle()
}

func (b *Bus) resolve() [2]bool {
	var lvl [2]bool
	for id := SCL; id <= SDA; id++ {
		low := b.masterLow[id] || b.faultLow[id]
		for _, d := range b.devices {
			if d.pulling(id) {
				low = true
			}
		}
		lvl[id] = !low
	}
	return lvl
}

// settle recomputes line levels and lets the monitor and devices react
// until nothing changes. Devices changing their outputs from inside the
// loop are picked up by the next pass.
func (b *Bus) settle() {
	if b.settling {
		return
	}
	b.settling = true
	defer func() { b.settling = false }()

	for {
		next := b.resolve()
		if next == b.level {
			return
		}
		prev := b.level
		b.level = next
		b.monitor(prev, next)
		for _, d := range b.devices {
			d.observe(prev, next)
		}
	}
}

func (b *Bus) monitor(prev, cur [2]bool) {
	switch {
	case prev[SCL] && cur[SCL] && prev[SDA] && !cur[SDA]:
		b.events = append(b.events, Event{At: b.now, Kind: EventStart})
	case prev[SCL] && cur[SCL] && !prev[SDA] && cur[SDA]:
		b.events = append(b.events, Event{At: b.now, Kind: EventStop})
	case !prev[SCL] && cur[SCL]:
		b.events = append(b.events, Event{At: b.now, Kind: EventBit, Value: cur[SDA]})
	}
}

// Line is the master's handle on one bus line. It has the release /
// drive-low / sample capability set of an open-drain GPIO.
type Line struct {
	bus *Bus
	id  LineID
}

// Release stops driving the line.
func (l *Line) Release() {
	l.bus.setMaster(l.id, false)
}

// DriveLow pulls the line low.
func (l *Line) DriveLow() {
	l.bus.setMaster(l.id, true)
}

// Sample returns the resolved line level.
func (l *Line) Sample() bool {
	return l.bus.level[l.id]
}
