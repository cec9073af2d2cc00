package mcu

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"microi2c/core"
	"microi2c/host/emulator"
	"microi2c/protocol"
	"microi2c/sim"
	"microi2c/tinycompress"
)

// newEmulated returns an identified client talking to an emulated board
// with bus oid 0 configured over the given devices.
func newEmulated(t *testing.T, devices ...*sim.Device) (*Client, *sim.Bus) {
	t.Helper()
	bus := sim.NewBus()
	bus.Attach(devices...)

	hostEnd, devEnd := net.Pipe()
	fw := emulator.Start(bus, devEnd, nil)
	c := New(hostEnd, WithTimeout(2*time.Second))
	t.Cleanup(func() {
		c.Close()
		fw.Close()
	})

	ctx := context.Background()
	if err := c.Identify(ctx); err != nil {
		t.Fatalf("Identify: %v", err)
	}
	err := c.ConfigureBus(ctx, BusConfig{
		OID:            0,
		SCLPin:         uint32(emulator.SCLPin),
		SDAPin:         uint32(emulator.SDAPin),
		DelayUS:        2,
		StretchLimitUS: 200,
	})
	if err != nil {
		t.Fatalf("ConfigureBus: %v", err)
	}
	return c, bus
}

func TestIdentify(t *testing.T) {
	c, _ := newEmulated(t)

	dict := c.Dictionary()
	if dict == nil {
		t.Fatal("no dictionary after Identify")
	}
	if dict.Version != protocol.Version {
		t.Errorf("Version = %q, want %q", dict.Version, protocol.Version)
	}
	if id, ok := dict.ID("identify"); !ok || id != identifyID {
		t.Errorf("identify id = %d, %v", id, ok)
	}
	if id, ok := dict.ID("identify_response"); !ok || id != identifyResponseID {
		t.Errorf("identify_response id = %d, %v", id, ok)
	}
	for _, name := range []string{"config_soft_i2c", "soft_i2c_scan", "soft_i2c_scan_response",
		"soft_i2c_write", "soft_i2c_read", "soft_i2c_read_response"} {
		if _, ok := dict.ID(name); !ok {
			t.Errorf("%s missing from dictionary", name)
		}
	}
	if n, ok := dict.Constant("SOFT_I2C_MAX_TRANSFER"); !ok || n != core.MaxTransfer {
		t.Errorf("SOFT_I2C_MAX_TRANSFER = %d, %v", n, ok)
	}
	if got, want := string(c.RawDictionary()), string(core.GlobalDictionary().Bytes()); got != want {
		t.Errorf("downloaded dictionary differs from the firmware's:\n%s\n%s", got, want)
	}
	if len(c.RawDictionary()) <= identifyChunk {
		t.Errorf("dictionary of %d bytes did not exercise chunking", len(c.RawDictionary()))
	}
}

func TestScan(t *testing.T) {
	c, _ := newEmulated(t, sim.NewDevice(0x68), sim.NewDevice(0x20))

	res, err := c.Scan(context.Background(), 0, 8)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Status != StatusOK || res.Count != 2 {
		t.Fatalf("Scan = %+v", res)
	}
	if len(res.Addresses) != 2 || res.Addresses[0] != 0x20 || res.Addresses[1] != 0x68 {
		t.Errorf("Addresses = %x, want [20 68]", res.Addresses)
	}
}

func TestScanCapacity(t *testing.T) {
	c, _ := newEmulated(t, sim.NewDevice(0x10), sim.NewDevice(0x20), sim.NewDevice(0x30))
	ctx := context.Background()

	res, err := c.Scan(ctx, 0, 1)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Count != 1 || len(res.Addresses) != 1 || res.Addresses[0] != 0x10 {
		t.Errorf("Scan(capacity 1) = %+v", res)
	}

	res, err = c.Scan(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Count != 1 || len(res.Addresses) != 0 {
		t.Errorf("Scan(capacity 0) = %+v, want count 1 and no addresses", res)
	}

	if _, err := c.Scan(ctx, 0, core.MaxTransfer+1); !errors.Is(err, ErrTransferTooLarge) {
		t.Errorf("oversized capacity: %v", err)
	}
}

func TestWriteThenRead(t *testing.T) {
	dev := sim.NewDevice(0x50)
	c, bus := newEmulated(t, dev)
	ctx := context.Background()

	if err := c.Write(ctx, 0, 0x50, []byte{0x10, 0xca, 0xfe}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if dev.Regs[0x10] != 0xca || dev.Regs[0x11] != 0xfe {
		t.Errorf("registers = % x", dev.Regs[0x10:0x12])
	}

	got, err := c.Read(ctx, 0, 0x50, []byte{0x10}, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 || got[0] != 0xca || got[1] != 0xfe {
		t.Errorf("Read = % x, want ca fe", got)
	}
	if !bus.Idle() {
		t.Error("bus not idle after transactions")
	}
}

func TestBusErrors(t *testing.T) {
	refusing := sim.NewDevice(0x51)
	refusing.NACKData = true
	c, bus := newEmulated(t, refusing)
	ctx := context.Background()

	if err := c.Write(ctx, 0, 0x40, []byte{1}); !errors.Is(err, ErrNoSuchDevice) {
		t.Errorf("write to empty address: %v, want ErrNoSuchDevice", err)
	}
	if err := c.Write(ctx, 0, 0x51, []byte{1}); !errors.Is(err, ErrNACK) {
		t.Errorf("write to refusing device: %v, want ErrNACK", err)
	}
	if _, err := c.Read(ctx, 0, 0x40, nil, 1); !errors.Is(err, ErrNoSuchDevice) {
		t.Errorf("read from empty address: %v, want ErrNoSuchDevice", err)
	}
	if _, err := c.Read(ctx, 0, 0x51, nil, core.MaxTransfer+1); !errors.Is(err, ErrTransferTooLarge) {
		t.Errorf("oversized read: %v", err)
	}

	bus.Fault(sim.SCL, true)
	res, err := c.Scan(ctx, 0, 4)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Status != StatusBusTimeout || res.Count != 0 {
		t.Errorf("Scan on stuck bus = %+v", res)
	}
	if err := c.Write(ctx, 0, 0x51, []byte{1}); !errors.Is(err, ErrBusTimeout) {
		t.Errorf("write on stuck bus: %v, want ErrBusTimeout", err)
	}
}

func TestUnknownOIDTimesOut(t *testing.T) {
	c, _ := newEmulated(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := c.Scan(ctx, 9, 4); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Scan of unconfigured oid: %v, want deadline exceeded", err)
	}

	// the link keeps working afterwards
	if _, err := c.Scan(context.Background(), 0, 4); err != nil {
		t.Errorf("Scan after timeout: %v", err)
	}
}

func TestOperationsNeedDictionary(t *testing.T) {
	hostEnd, devEnd := net.Pipe()
	defer devEnd.Close()
	c := New(hostEnd)
	defer c.Close()

	ctx := context.Background()
	if _, err := c.Scan(ctx, 0, 1); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("Scan: %v", err)
	}
	if err := c.Write(ctx, 0, 0x20, nil); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("Write: %v", err)
	}
	if _, err := c.Read(ctx, 0, 0x20, nil, 1); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("Read: %v", err)
	}
	if err := c.Send(ctx, "config_soft_i2c", nil); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("Send: %v", err)
	}
}

func TestParseDictionary(t *testing.T) {
	d, err := ParseDictionary([]byte(`{"version":"v1","config":{"N":"12","S":"x"},` +
		`"commands":{"identify offset=%u count=%c":1,"ping":3},"responses":{"pong value=%c":2}}`))
	if err != nil {
		t.Fatalf("ParseDictionary: %v", err)
	}
	if id, ok := d.ID("ping"); !ok || id != 3 {
		t.Errorf("ping = %d, %v", id, ok)
	}
	if id, ok := d.ID("pong"); !ok || id != 2 {
		t.Errorf("pong = %d, %v", id, ok)
	}
	if _, ok := d.ID("identify offset=%u"); ok {
		t.Error("lookup by partial signature should fail")
	}
	if n, ok := d.Constant("N"); !ok || n != 12 {
		t.Errorf("Constant(N) = %d, %v", n, ok)
	}
	if _, ok := d.Constant("S"); ok {
		t.Error("non-numeric constant parsed")
	}

	if _, err := ParseDictionary([]byte("{")); err == nil {
		t.Error("ParseDictionary accepted truncated JSON")
	}
}

func TestInflateDictionary(t *testing.T) {
	doc := []byte(`{"version":"v1","config":{},"commands":{},"responses":{}}`)
	raw, err := inflateDictionary(tinycompress.Compress(doc))
	if err != nil {
		t.Fatalf("inflateDictionary: %v", err)
	}
	if string(raw) != string(doc) {
		t.Errorf("inflated %q, want %q", raw, doc)
	}

	if _, err := inflateDictionary(doc); !errors.Is(err, ErrBadResponse) {
		t.Errorf("plain JSON: err = %v, want ErrBadResponse", err)
	}
	truncated := tinycompress.Compress(doc)
	if _, err := inflateDictionary(truncated[:len(truncated)-6]); !errors.Is(err, ErrBadResponse) {
		t.Errorf("truncated stream: err = %v, want ErrBadResponse", err)
	}
}

func TestStatusMatchesFirmware(t *testing.T) {
	pairs := []struct {
		host Status
		fw   uint8
		err  error
		name string
	}{
		{StatusOK, core.StatusOK, nil, "ok"},
		{StatusNoSuchDevice, core.StatusNoSuchDevice, ErrNoSuchDevice, "no_device"},
		{StatusNACK, core.StatusNACK, ErrNACK, "nack"},
		{StatusBusTimeout, core.StatusBusTimeout, ErrBusTimeout, "timeout"},
		{StatusOther, core.StatusOther, ErrBusFailure, "error"},
	}
	for _, p := range pairs {
		if uint8(p.host) != p.fw {
			t.Errorf("%s: host %d, firmware %d", p.name, p.host, p.fw)
		}
		if p.host.Err() != p.err {
			t.Errorf("%s: Err() = %v", p.name, p.host.Err())
		}
		if p.host.String() != p.name {
			t.Errorf("String() = %q, want %q", p.host.String(), p.name)
		}
	}
}
