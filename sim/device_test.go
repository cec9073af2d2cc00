package sim

import "testing"

// pulse-level helpers driving the bus the way a master would

func start(b *Bus) {
	b.SDA().Release()
	b.SCL().Release()
	b.SDA().DriveLow()
	b.SCL().DriveLow()
}

func stop(b *Bus) {
	b.SCL().DriveLow()
	b.SDA().DriveLow()
	b.SCL().Release()
	b.SDA().Release()
}

// clock raises SCL, waits out any stretch, samples SDA and drops SCL.
func clock(t *testing.T, b *Bus) bool {
	t.Helper()
	b.SCL().Release()
	for i := 0; !b.SCL().Sample(); i++ {
		if i > 100000 {
			t.Fatal("SCL never released")
		}
		b.DelayMicroseconds(1)
	}
	v := b.SDA().Sample()
	b.SCL().DriveLow()
	return v
}

func writeByte(t *testing.T, b *Bus, v byte) bool {
	t.Helper()
	for i := 0; i < 8; i++ {
		if v&0x80 != 0 {
			b.SDA().Release()
		} else {
			b.SDA().DriveLow()
		}
		clock(t, b)
		v <<= 1
	}
	b.SDA().Release()
	return !clock(t, b)
}

func readByte(t *testing.T, b *Bus, ack bool) byte {
	t.Helper()
	var v byte
	b.SDA().Release()
	for i := 0; i < 8; i++ {
		v <<= 1
		if clock(t, b) {
			v |= 1
		}
	}
	if ack {
		b.SDA().DriveLow()
	}
	clock(t, b)
	b.SDA().Release()
	return v
}

func TestDeviceAddressMatch(t *testing.T) {
	bus := NewBus()
	dev := NewDevice(0x3C)
	other := NewDevice(0x3D)
	bus.Attach(dev, other)

	start(bus)
	if !writeByte(t, bus, 0x3C<<1) {
		t.Error("device did not ACK its address")
	}
	stop(bus)

	start(bus)
	if writeByte(t, bus, 0x10<<1) {
		t.Error("ACK for an address nobody owns")
	}
	stop(bus)

	if got := dev.Received(); len(got) != 2 || got[0] != 0x78 || got[1] != 0x20 {
		t.Errorf("Received() = %x, want [78 20]", got)
	}
	starts, stops := dev.Conditions()
	if starts != 2 || stops != 2 {
		t.Errorf("Conditions() = %d, %d, want 2, 2", starts, stops)
	}
	if !bus.Idle() {
		t.Error("bus not idle")
	}
}

func TestDeviceRegisterFile(t *testing.T) {
	bus := NewBus()
	dev := NewDevice(0x50)
	bus.Attach(dev)

	start(bus)
	writeByte(t, bus, 0x50<<1)
	writeByte(t, bus, 0x80) // pointer
	writeByte(t, bus, 0x01)
	writeByte(t, bus, 0x02)
	stop(bus)

	if dev.Regs[0x80] != 0x01 || dev.Regs[0x81] != 0x02 {
		t.Errorf("registers = % x", dev.Regs[0x80:0x82])
	}
	if dev.Pointer() != 0x82 {
		t.Errorf("Pointer() = %#02x, want 0x82", dev.Pointer())
	}

	start(bus)
	writeByte(t, bus, 0x50<<1)
	writeByte(t, bus, 0x80)
	start(bus) // repeated
	writeByte(t, bus, 0x50<<1|1)
	a := readByte(t, bus, true)
	b := readByte(t, bus, false)
	stop(bus)

	if a != 0x01 || b != 0x02 {
		t.Errorf("read back %#02x %#02x, want 0x01 0x02", a, b)
	}
	if acks := dev.MasterAcks(); len(acks) != 2 || !acks[0] || acks[1] {
		t.Errorf("MasterAcks() = %v", acks)
	}
}

func TestDevicePointerWraps(t *testing.T) {
	bus := NewBus()
	dev := NewDevice(0x50)
	dev.Regs[0xFF] = 0xAA
	dev.Regs[0x00] = 0xBB
	bus.Attach(dev)

	start(bus)
	writeByte(t, bus, 0x50<<1)
	writeByte(t, bus, 0xFF)
	start(bus)
	writeByte(t, bus, 0x50<<1|1)
	a := readByte(t, bus, true)
	b := readByte(t, bus, false)
	stop(bus)

	if a != 0xAA || b != 0xBB {
		t.Errorf("read %#02x %#02x, want 0xaa 0xbb", a, b)
	}
}

func TestDeviceNACKData(t *testing.T) {
	bus := NewBus()
	dev := NewDevice(0x50)
	dev.NACKData = true
	bus.Attach(dev)

	start(bus)
	if !writeByte(t, bus, 0x50<<1) {
		t.Fatal("address should still be acknowledged")
	}
	if writeByte(t, bus, 0x00) {
		t.Error("data byte should be refused")
	}
	stop(bus)
}

func TestDeviceStretch(t *testing.T) {
	bus := NewBus()
	dev := NewDevice(0x50)
	dev.StretchMicros = 40
	bus.Attach(dev)

	start(bus)
	t0 := bus.Now()
	if !writeByte(t, bus, 0x50<<1) {
		t.Fatal("no ACK")
	}
	if waited := bus.Now() - t0; waited < 40 {
		t.Errorf("clock released after %dus, want at least 40us", waited)
	}
	stop(bus)
	if !bus.Idle() {
		t.Error("bus not idle")
	}
}

func TestStretchReleaseOrder(t *testing.T) {
	bus := NewBus()
	slow := NewDevice(0x50)
	slow.StretchMicros = 30
	bus.Attach(slow)

	start(bus)
	// address bits with the ACK clock pending
	v := byte(0x50 << 1)
	for i := 0; i < 8; i++ {
		if v&0x80 != 0 {
			bus.SDA().Release()
		} else {
			bus.SDA().DriveLow()
		}
		clock(t, bus)
		v <<= 1
	}
	bus.SDA().Release()
	bus.SCL().Release()
	if bus.Level(SCL) {
		t.Fatal("device should be holding SCL")
	}
	bus.DelayMicroseconds(29)
	if bus.Level(SCL) {
		t.Error("released too early")
	}
	bus.DelayMicroseconds(1)
	if !bus.Level(SCL) {
		t.Error("SCL should be released at the hold deadline")
	}
}
