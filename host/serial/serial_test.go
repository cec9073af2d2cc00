package serial

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM1")
	if cfg.Device != "/dev/ttyACM1" || cfg.Baud != 250000 {
		t.Errorf("DefaultConfig = %+v", cfg)
	}
	if cfg.ReadTimeout != 100*time.Millisecond {
		t.Errorf("ReadTimeout = %v", cfg.ReadTimeout)
	}
}

func TestOpenWithoutDevice(t *testing.T) {
	if _, err := Open(nil); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Open(nil) = %v, want ErrNoDevice", err)
	}
	if _, err := Open(DefaultConfig("")); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Open(\"\") = %v, want ErrNoDevice", err)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := Open(DefaultConfig("/dev/does-not-exist-softi2c")); err == nil {
		t.Error("Open of a missing device succeeded")
	}
}
