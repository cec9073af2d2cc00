package core

import (
	"bytes"
	"compress/zlib"
	"io"
	"strings"
	"testing"
)

func TestDictionaryJSON(t *testing.T) {
	reg := NewCommandRegistry()
	reg.Register("identify_response", "offset=%u data=%*s", nil)
	reg.Register("identify", "offset=%u count=%c", func(*[]byte) error { return nil })

	d := NewDictionary(reg, "test-1")
	d.SetConstant("MCU", "sim")
	d.SetConstant("CLOCK_FREQ", uint32(1000000))
	d.SetConstant("ENABLED", true)

	want := `{"version":"test-1",` +
		`"config":{"CLOCK_FREQ":"1000000","ENABLED":"1","MCU":"sim"},` +
		`"commands":{"identify offset=%u count=%c":1},` +
		`"responses":{"identify_response offset=%u data=%*s":0}}`
	if got := string(d.Bytes()); got != want {
		t.Errorf("dictionary =\n%s\nwant\n%s", got, want)
	}
}

func TestDictionaryEscapes(t *testing.T) {
	d := NewDictionary(NewCommandRegistry(), `v"1\`)
	d.SetConstant("NAME", "a\nb")
	got := string(d.Bytes())
	if !strings.Contains(got, `"version":"v\"1\\"`) || !strings.Contains(got, `"NAME":"a\u000ab"`) {
		t.Errorf("escaping wrong: %s", got)
	}
}

func TestDictionaryChunks(t *testing.T) {
	reg := NewCommandRegistry()
	for _, name := range []string{"a", "b", "c", "d"} {
		reg.Register("cmd_"+name, "oid=%c value=%u", func(*[]byte) error { return nil })
	}
	d := NewDictionary(reg, "chunks")
	full := d.Compressed()

	var rebuilt []byte
	for offset := uint32(0); ; {
		chunk := d.Chunk(offset, 40)
		if len(chunk) == 0 {
			break
		}
		if len(chunk) > 40 {
			t.Fatalf("chunk of %d bytes", len(chunk))
		}
		rebuilt = append(rebuilt, chunk...)
		offset += uint32(len(chunk))
	}
	if !bytes.Equal(rebuilt, full) {
		t.Errorf("reassembled dictionary differs")
	}
	if d.Chunk(uint32(len(full))+10, 40) != nil {
		t.Error("chunk past the end should be empty")
	}
}

func TestDictionaryInvalidate(t *testing.T) {
	reg := NewCommandRegistry()
	d := NewDictionary(reg, "v")
	before := string(d.Bytes())

	reg.Register("late_command", "", func(*[]byte) error { return nil })
	if string(d.Bytes()) != before {
		t.Error("cached dictionary should not change until invalidated")
	}
	d.Invalidate()
	if !strings.Contains(string(d.Bytes()), "late_command") {
		t.Error("Invalidate did not pick up the new command")
	}
}

func TestDictionaryCompressedRoundTrip(t *testing.T) {
	reg := NewCommandRegistry()
	reg.Register("identify_response", "offset=%u data=%*s", nil)
	reg.Register("identify", "offset=%u count=%c", func(*[]byte) error { return nil })
	d := NewDictionary(reg, "zlib")
	d.SetConstant("MCU", "sim")

	stream := d.Compressed()
	if len(stream) < 2 || stream[0] != 0x78 {
		t.Fatalf("not a zlib stream: % x", stream)
	}
	r, err := zlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflating: %v", err)
	}
	if !bytes.Equal(got, d.Bytes()) {
		t.Errorf("inflated =\n%s\nwant\n%s", got, d.Bytes())
	}

	d.SetConstant("EXTRA", 1)
	if bytes.Equal(d.Compressed(), stream) {
		t.Error("SetConstant did not refresh the compressed dictionary")
	}
}
