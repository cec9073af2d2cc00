// Package tinycompress produces zlib streams without a DEFLATE compressor.
//
// Data goes out as stored (uncompressed) DEFLATE blocks of up to 64 KiB,
// framed by the zlib header and Adler-32 trailer. Any inflater reads the
// result, and the firmware carries no Huffman tables.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

// maxStoredBlock is the largest payload of one stored DEFLATE block.
const maxStoredBlock = 0xFFFF

// zlib CMF/FLG: deflate, 32K window, default level
var zlibHeader = []byte{0x78, 0x9C}

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("tinycompress: write after close")

// Writer buffers everything written to it and emits the zlib stream on
// Close.
type Writer struct {
	output io.Writer
	input  []byte
	closed bool
}

// NewWriter returns a Writer emitting to w. sizeHint preallocates the
// input buffer so Write does not grow it on the MCU.
func NewWriter(w io.Writer, sizeHint int) *Writer {
	return &Writer{
		output: w,
		input:  make([]byte, 0, sizeHint),
	}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	w.input = append(w.input, p...)
	return len(p), nil
}

// Close writes the header, the stored blocks and the checksum.
// Closing twice is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.output.Write(zlibHeader); err != nil {
		return err
	}

	data := w.input
	for {
		n := len(data)
		final := n <= maxStoredBlock
		if !final {
			n = maxStoredBlock
		}
		if err := w.writeBlock(data[:n], final); err != nil {
			return err
		}
		data = data[n:]
		if final {
			break
		}
	}

	sum := adler32.Checksum(w.input)
	_, err := w.output.Write([]byte{
		byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum),
	})
	return err
}

// writeBlock emits one stored block: BFINAL/BTYPE byte, LEN, NLEN
// (little endian), then the raw bytes.
func (w *Writer) writeBlock(p []byte, final bool) error {
	var hdr [5]byte
	if final {
		hdr[0] = 0x01
	}
	length := uint16(len(p))
	hdr[1] = byte(length)
	hdr[2] = byte(length >> 8)
	hdr[3] = byte(^length)
	hdr[4] = byte(^length >> 8)
	if _, err := w.output.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.output.Write(p)
	return err
}

// Compress returns data wrapped as a zlib stream.
func Compress(data []byte) []byte {
	out := &appendWriter{buf: make([]byte, 0, StoredSize(len(data)))}
	w := NewWriter(out, 0)
	w.input = data
	_ = w.Close() // appendWriter never fails
	return out.buf
}

// StoredSize is the length of Compress(data) for n input bytes.
func StoredSize(n int) int {
	blocks := (n + maxStoredBlock - 1) / maxStoredBlock
	if blocks == 0 {
		blocks = 1
	}
	return len(zlibHeader) + 5*blocks + n + 4
}

type appendWriter struct {
	buf []byte
}

func (a *appendWriter) Write(p []byte) (int, error) {
	a.buf = append(a.buf, p...)
	return len(p), nil
}
