package cmd

import (
	"bytes"
	"strings"
	"testing"
)

// resetFlags puts every flag variable back to its default so runs do not
// leak into each other.
func resetFlags() {
	cfgFile = ""
	verbose = false
	device = ""
	emulate = false
	simDevices = nil
	stretchUS = 0
	scanCapacity = 16
	scanPublish = false
	xferAddr = ""
	xferReg = ""
	xferData = ""
	readLen = 1
	dictRaw = false
	simCapacity = 16
	simStretchLimit = 0
	simTrace = false
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCommandsE2E(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     string
		wantContain []string
	}{
		{
			name:        "emulated scan",
			args:        []string{"scan", "--emulate", "--devices", "0x42,0x20"},
			wantContain: []string{"found 2 device(s)", "  0x20\n", "  0x42\n"},
		},
		{
			name:        "emulated scan capacity",
			args:        []string{"scan", "--emulate", "--devices", "0x10,0x20,0x30", "--capacity", "1"},
			wantContain: []string{"found 1 device(s)", "  0x10\n"},
		},
		{
			name:        "emulated scan with stretching devices",
			args:        []string{"scan", "--emulate", "--devices", "0x3c", "--stretch-us", "50"},
			wantContain: []string{"found 1 device(s)", "  0x3c\n"},
		},
		{
			name:        "emulated read",
			args:        []string{"read", "--emulate", "--devices", "0x68", "--addr", "0x68", "--reg", "00", "--len", "3"},
			wantContain: []string{"0x68: 00 00 00"},
		},
		{
			name:        "emulated write",
			args:        []string{"write", "--emulate", "--devices", "0x50", "--addr", "0x50", "--data", "0x10cafe"},
			wantContain: []string{"0x50: wrote 3 byte(s)"},
		},
		{
			name:    "write to empty address",
			args:    []string{"write", "--emulate", "--addr", "0x51", "--data", "00"},
			wantErr: "no device",
		},
		{
			name:    "read too long",
			args:    []string{"read", "--emulate", "--devices", "0x50", "--addr", "0x50", "--len", "49"},
			wantErr: "exceeds firmware limit",
		},
		{
			name:    "invalid address",
			args:    []string{"read", "--emulate", "--addr", "0x80"},
			wantErr: "invalid 7-bit address",
		},
		{
			name:    "invalid hex",
			args:    []string{"write", "--emulate", "--addr", "0x50", "--data", "zz"},
			wantErr: "invalid hex",
		},
		{
			name:        "emulated dictionary",
			args:        []string{"dict", "--emulate"},
			wantContain: []string{"Version: microi2c-", "[1] identify offset=%u count=%c", "soft_i2c_scan oid=%c capacity=%c", "SOFT_I2C_MAX_TRANSFER = 48"},
		},
		{
			name:        "raw dictionary",
			args:        []string{"dict", "--emulate", "--raw"},
			wantContain: []string{`{"version":"microi2c-`},
		},
		{
			name:        "sim scan",
			args:        []string{"sim", "--devices", "0x20,0x42"},
			wantContain: []string{"Scan: 2 device(s)", "0x20 probe ack=true", "0x42 probe ack=true"},
		},
		{
			name:        "sim trace",
			args:        []string{"sim", "--devices", "0x20", "--trace"},
			wantContain: []string{"[I2C] === Bus Trace ===", "[I2C] PROBE addr=0x20 val=0 ack", "[I2C] === End Trace ==="},
		},
		{
			name:    "sim stretch limit",
			args:    []string{"sim", "--devices", "0x20", "--stretch-us", "500", "--stretch-limit-us", "100"},
			wantErr: "timeout",
		},
		{
			name:    "sim bad device",
			args:    []string{"sim", "--devices", "0x99"},
			wantErr: "invalid 7-bit address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := run(t, tt.args...)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want one mentioning %q\nOutput: %s", err, tt.wantErr, output)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}

func TestParseHelpers(t *testing.T) {
	for in, want := range map[string]uint8{"0x20": 0x20, "32": 32, "0o17": 15, " 0x7f ": 0x7f} {
		got, err := parseAddr(in)
		if err != nil || got != want {
			t.Errorf("parseAddr(%q) = %#x, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "0x80", "-1", "abc"} {
		if _, err := parseAddr(in); err == nil {
			t.Errorf("parseAddr(%q) accepted", in)
		}
	}

	b, err := parseHex("0x0a 1b")
	if err != nil || !bytes.Equal(b, []byte{0x0a, 0x1b}) {
		t.Errorf("parseHex = % x, %v", b, err)
	}
	if b, err := parseHex(""); err != nil || len(b) != 0 {
		t.Errorf("parseHex(\"\") = % x, %v", b, err)
	}
}
