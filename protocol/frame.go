package protocol

import (
	"bytes"
	"errors"
)

var (
	ErrShortBlock   = errors.New("protocol: incomplete block")
	ErrBadBlock     = errors.New("protocol: corrupt block")
	ErrBlockTooLong = errors.New("protocol: message does not fit in one block")
)

// Block is one decoded message block. An empty payload is an ACK/NAK.
type Block struct {
	Seq     uint8
	Payload []byte
}

// ParseBlock decodes the block at the front of data and returns how many
// bytes it occupied. ErrShortBlock asks for more input; ErrBadBlock means
// the stream is out of sync.
func ParseBlock(data []byte) (Block, int, error) {
	if len(data) < BlockMin {
		return Block{}, 0, ErrShortBlock
	}
	n := int(data[posLen])
	if n < BlockMin || n > BlockMax {
		return Block{}, 0, ErrBadBlock
	}
	if len(data) < n {
		return Block{}, 0, ErrShortBlock
	}
	if data[n-1] != SyncByte {
		return Block{}, 0, ErrBadBlock
	}
	crc := uint16(data[n-TrailerSize])<<8 | uint16(data[n-TrailerSize+1])
	if crc != CRC16(data[:n-TrailerSize]) {
		return Block{}, 0, ErrBadBlock
	}
	return Block{Seq: data[posSeq], Payload: data[HeaderSize : n-TrailerSize]}, n, nil
}

// AppendBlock appends a complete block carrying payload to dst.
func AppendBlock(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	n := HeaderSize + len(payload) + TrailerSize
	if n > BlockMax {
		return dst, ErrBlockTooLong
	}
	start := len(dst)
	dst = append(dst, byte(n), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), SyncByte), nil
}

// Decoder splits a byte stream into blocks. After a corrupt block it drops
// input up to the next sync byte before decoding again.
type Decoder struct {
	lost bool

	// Resynced is called each time the decoder regains sync.
	Resynced func()
}

// Decode hands every complete block in data to fn and returns the number
// of bytes consumed. Blocks passed to fn alias data.
func (d *Decoder) Decode(data []byte, fn func(Block)) int {
	total := len(data)
	for len(data) > 0 {
		if d.lost {
			i := bytes.IndexByte(data, SyncByte)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			d.lost = false
			if d.Resynced != nil {
				d.Resynced()
			}
			continue
		}
		if data[0] == SyncByte {
			data = data[1:]
			continue
		}

		blk, n, err := ParseBlock(data)
		if err == ErrShortBlock {
			break
		}
		if err != nil {
			d.lost = true
			continue
		}
		data = data[n:]
		fn(blk)
	}
	return total - len(data)
}

// Desync forces the decoder to hunt for the next sync byte.
func (d *Decoder) Desync() {
	d.lost = true
}

// InSync reports whether the decoder is currently in sync.
func (d *Decoder) InSync() bool {
	return !d.lost
}

// Reset puts the decoder back in sync.
func (d *Decoder) Reset() {
	d.lost = false
}
