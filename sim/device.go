package sim

type deviceState uint8

const (
	stIdle      deviceState = iota // waiting for START
	stAddress                      // shifting in the address byte
	stAckAddr                      // driving ACK for our address
	stReceive                      // shifting in a data byte
	stAckData                      // driving ACK for a data byte
	stTransmit                     // shifting out a data byte
	stMasterAck                    // reading the master's ACK/NACK
	stIgnore                       // not addressed, or transfer refused
)

// Device is a virtual I2C slave with a 256-byte register file.
//
// The first byte written after the address sets the register pointer;
// further written bytes are stored with auto-increment. Reads return
// registers from the pointer on, also auto-incrementing.
type Device struct {
	Addr uint8
	Regs [256]byte

	// NACKData makes the device refuse every data byte (the address is
	// still acknowledged).
	NACKData bool

	// StretchMicros holds SCL low for this long after each byte the device
	// receives, before it lets the ACK clock run.
	StretchMicros uint32

	bus     *Bus
	state   deviceState
	bits    int
	shift   byte
	out     byte
	read    bool
	ptr     uint8
	ptrSet  bool
	sdaLow  bool
	holdSCL bool

	releaseAt  uint64
	masterAck  bool
	received   []byte
	sampled    []bool
	masterAcks []bool
	starts     int
	stops      int
}

// NewDevice returns a device answering at the 7-bit address addr.
func NewDevice(addr uint8) *Device {
	return &Device{Addr: addr}
}

// Received returns every byte clocked in while the device was listening,
// address bytes included.
func (d *Device) Received() []byte {
	return append([]byte(nil), d.received...)
}

// Sampled returns every bit the device sampled on a rising SCL edge while
// receiving, in bus order.
func (d *Device) Sampled() []bool {
	return append([]bool(nil), d.sampled...)
}

// MasterAcks returns the ACK (true) / NACK (false) bits the master sent
// after each byte the device transmitted.
func (d *Device) MasterAcks() []bool {
	return append([]bool(nil), d.masterAcks...)
}

// Conditions returns how many START and STOP conditions the device saw.
func (d *Device) Conditions() (starts, stops int) {
	return d.starts, d.stops
}

// Pointer returns the current register pointer.
func (d *Device) Pointer() uint8 {
	return d.ptr
}

func (d *Device) pulling(id LineID) bool {
	if id == SCL {
		return d.holdSCL
	}
	return d.sdaLow
}

func (d *Device) observe(prev, cur [2]bool) {
	if prev[SCL] && cur[SCL] {
		switch {
		case prev[SDA] && !cur[SDA]:
			d.start()
		case !prev[SDA] && cur[SDA]:
			d.stop()
		}
		return
	}
	switch {
	case !prev[SCL] && cur[SCL]:
		d.rise(cur[SDA])
	case prev[SCL] && !cur[SCL]:
		d.fall()
	}
}

func (d *Device) start() {
	d.starts++
	d.sdaLow = false
	d.state = stAddress
	d.bits = 0
	d.shift = 0
	d.ptrSet = false
}

func (d *Device) stop() {
	d.stops++
	d.sdaLow = false
	d.state = stIdle
}

func (d *Device) rise(sda bool) {
	switch d.state {
	case stAddress, stReceive:
		d.shift <<= 1
		if sda {
			d.shift |= 1
		}
		d.bits++
		d.sampled = append(d.sampled, sda)
	case stMasterAck:
		d.masterAck = !sda
		d.masterAcks = append(d.masterAcks, d.masterAck)
	}
}

func (d *Device) fall() {
	switch d.state {
	case stAddress:
		if d.bits < 8 {
			return
		}
		d.received = append(d.received, d.shift)
		if d.shift>>1 != d.Addr {
			d.state = stIgnore
			return
		}
		d.read = d.shift&1 == 1
		d.state = stAckAddr
		d.sdaLow = true
		d.stretch()

	case stReceive:
		if d.bits < 8 {
			return
		}
		d.received = append(d.received, d.shift)
		if d.NACKData {
			d.state = stIgnore
			return
		}
		d.store(d.shift)
		d.state = stAckData
		d.sdaLow = true
		d.stretch()

	case stAckAddr:
		d.sdaLow = false
		if d.read {
			d.load()
			d.state = stTransmit
			d.putBit()
			return
		}
		d.state = stReceive
		d.bits = 0
		d.shift = 0

	case stAckData:
		d.sdaLow = false
		d.state = stReceive
		d.bits = 0
		d.shift = 0

	case stTransmit:
		if d.bits < 8 {
			d.putBit()
			return
		}
		d.sdaLow = false
		d.state = stMasterAck

	case stMasterAck:
		if !d.masterAck {
			d.state = stIgnore
			return
		}
		d.load()
		d.state = stTransmit
		d.putBit()
	}
}

func (d *Device) store(b byte) {
	if !d.ptrSet {
		d.ptr = b
		d.ptrSet = true
		return
	}
	d.Regs[d.ptr] = b
	d.ptr++
}

func (d *Device) load() {
	d.out = d.Regs[d.ptr]
	d.ptr++
	d.bits = 0
}

func (d *Device) putBit() {
	d.sdaLow = d.out&0x80 == 0
	d.out <<= 1
	d.bits++
}

func (d *Device) stretch() {
	if d.StretchMicros == 0 || d.bus == nil {
		return
	}
	d.holdSCL = true
	d.releaseAt = d.bus.now + uint64(d.StretchMicros)
}

func (d *Device) releaseClock() {
	d.holdSCL = false
	d.bus.settle()
}
