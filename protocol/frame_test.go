package protocol

import (
	"bytes"
	"testing"
)

func TestAckBlockBytes(t *testing.T) {
	got, err := AppendBlock(nil, 0x11, nil)
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	want := []byte{0x05, 0x11, 0x8F, 0x08, SyncByte}
	if !bytes.Equal(got, want) {
		t.Errorf("ack block = % x, want % x", got, want)
	}
}

func TestBlockRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	enc, err := AppendBlock([]byte{0xAA}, 0x13, payload)
	if err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}
	if enc[0] != 0xAA {
		t.Fatal("AppendBlock clobbered existing data")
	}
	blk, n, err := ParseBlock(enc[1:])
	if err != nil {
		t.Fatalf("ParseBlock: %v", err)
	}
	if n != len(enc)-1 || blk.Seq != 0x13 || !bytes.Equal(blk.Payload, payload) {
		t.Errorf("ParseBlock = %+v, %d", blk, n)
	}
}

func TestParseBlockErrors(t *testing.T) {
	good, _ := AppendBlock(nil, 0x10, []byte{7, 8, 9})

	if _, _, err := ParseBlock(good[:4]); err != ErrShortBlock {
		t.Errorf("short header: %v", err)
	}
	if _, _, err := ParseBlock(good[:len(good)-1]); err != ErrShortBlock {
		t.Errorf("partial block: %v", err)
	}

	badCRC := append([]byte(nil), good...)
	badCRC[3] ^= 0xFF
	if _, _, err := ParseBlock(badCRC); err != ErrBadBlock {
		t.Errorf("corrupt payload: %v", err)
	}

	badSync := append([]byte(nil), good...)
	badSync[len(badSync)-1] = 0
	if _, _, err := ParseBlock(badSync); err != ErrBadBlock {
		t.Errorf("missing sync: %v", err)
	}

	badLen := append([]byte(nil), good...)
	badLen[0] = BlockMax + 1
	if _, _, err := ParseBlock(badLen); err != ErrBadBlock {
		t.Errorf("oversized length: %v", err)
	}
}

func TestAppendBlockTooLong(t *testing.T) {
	payload := make([]byte, BlockMax-BlockMin+1)
	if _, err := AppendBlock(nil, 0x10, payload); err != ErrBlockTooLong {
		t.Errorf("oversized payload: %v", err)
	}
	if _, err := AppendBlock(nil, 0x10, payload[1:]); err != nil {
		t.Errorf("largest payload: %v", err)
	}
}

func TestDecoderSplitsStream(t *testing.T) {
	var stream []byte
	stream, _ = AppendBlock(stream, 0x10, []byte{1})
	stream, _ = AppendBlock(stream, 0x11, []byte{2, 2})
	stream = append(stream, SyncByte, SyncByte)
	stream, _ = AppendBlock(stream, 0x12, nil)
	partial, _ := AppendBlock(nil, 0x13, []byte{3})
	stream = append(stream, partial[:3]...)

	var d Decoder
	var seqs []uint8
	used := d.Decode(stream, func(b Block) { seqs = append(seqs, b.Seq) })

	if len(seqs) != 3 || seqs[0] != 0x10 || seqs[1] != 0x11 || seqs[2] != 0x12 {
		t.Errorf("decoded seqs %x", seqs)
	}
	if used != len(stream)-3 {
		t.Errorf("consumed %d of %d bytes; the partial block should stay", used, len(stream))
	}
}

func TestDecoderResyncs(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x09, 0x55, 0x01, 0x02) // garbage with a bogus length
	stream = append(stream, SyncByte)
	stream, _ = AppendBlock(stream, 0x14, []byte{0x42})

	resyncs := 0
	d := Decoder{Resynced: func() { resyncs++ }}
	var got []Block
	used := d.Decode(stream, func(b Block) { got = append(got, b) })

	if used != len(stream) {
		t.Errorf("consumed %d of %d", used, len(stream))
	}
	if resyncs != 1 {
		t.Errorf("resynced %d times, want 1", resyncs)
	}
	if len(got) != 1 || got[0].Seq != 0x14 {
		t.Errorf("blocks after resync: %+v", got)
	}
	if !d.InSync() {
		t.Error("decoder should be in sync")
	}
}

func TestDecoderDropsGarbageWithoutSync(t *testing.T) {
	var d Decoder
	d.Desync()
	used := d.Decode([]byte{1, 2, 3, 4, 5, 6}, func(Block) { t.Error("no block expected") })
	if used != 6 {
		t.Errorf("consumed %d, want all 6", used)
	}
	if d.InSync() {
		t.Error("decoder claims sync without a sync byte")
	}
}

func TestNextSeq(t *testing.T) {
	if NextSeq(0x10) != 0x11 || NextSeq(0x1E) != 0x1F || NextSeq(0x1F) != 0x10 {
		t.Error("sequence must cycle through 0x10..0x1F")
	}
}
