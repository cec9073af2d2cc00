package protocol

// Args builds the VLQ-encoded argument list of one message.
type Args struct {
	buf []byte
}

// Uint appends an unsigned integer argument (%u, %c, %hu).
func (a *Args) Uint(v uint32) *Args {
	a.buf = AppendVLQ(a.buf, int32(v))
	return a
}

// Int appends a signed integer argument (%i, %hi).
func (a *Args) Int(v int32) *Args {
	a.buf = AppendVLQ(a.buf, v)
	return a
}

// Bytes appends a byte string argument (%*s).
func (a *Args) Bytes(b []byte) *Args {
	a.buf = AppendVLQBytes(a.buf, b)
	return a
}

// Bool appends a boolean as 0 or 1.
func (a *Args) Bool(b bool) *Args {
	if b {
		return a.Uint(1)
	}
	return a.Uint(0)
}

// Encoded returns the arguments encoded so far.
func (a *Args) Encoded() []byte {
	return a.buf
}

// Reset empties the argument list, keeping its storage.
func (a *Args) Reset() {
	a.buf = a.buf[:0]
}

// FifoBuffer is a fixed-size byte ring between an I/O reader and the
// block decoder.
type FifoBuffer struct {
	buf   []byte
	read  int
	count int
}

// NewFifoBuffer returns an empty ring holding up to capacity bytes.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write stores as much of data as fits and returns how much that was.
func (f *FifoBuffer) Write(data []byte) int {
	n := 0
	for _, b := range data {
		if f.count == len(f.buf) {
			break
		}
		f.buf[(f.read+f.count)%len(f.buf)] = b
		f.count++
		n++
	}
	return n
}

// Available returns the number of buffered bytes.
func (f *FifoBuffer) Available() int {
	return f.count
}

// Free returns the remaining room.
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.count
}

// Data returns the buffered bytes in order. When the contents wrap the
// ring they are copied into a fresh slice.
func (f *FifoBuffer) Data() []byte {
	end := f.read + f.count
	if end <= len(f.buf) {
		return f.buf[f.read:end]
	}
	out := make([]byte, 0, f.count)
	out = append(out, f.buf[f.read:]...)
	return append(out, f.buf[:end-len(f.buf)]...)
}

// Pop discards n bytes from the front.
func (f *FifoBuffer) Pop(n int) {
	if n > f.count {
		n = f.count
	}
	f.read = (f.read + n) % len(f.buf)
	f.count -= n
}

// Reset empties the ring.
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.count = 0
}
