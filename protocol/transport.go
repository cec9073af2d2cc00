package protocol

import (
	"errors"
	"io"
	"sync/atomic"
)

// ErrHandlerPanic is reported when a command handler panics.
var ErrHandlerPanic = errors.New("protocol: command handler panicked")

// CommandHandler handles one decoded command. It must consume its own
// arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware side of the link: it decodes host blocks,
// dispatches the commands inside them and answers every block with an
// ACK carrying the next expected sequence.
type Transport struct {
	dec     Decoder
	next    atomic.Uint32
	out     io.Writer
	handler CommandHandler
	scratch []byte

	onReset func()
	onError func(cmdID uint16, err error)
	flush   func()
}

// NewTransport returns a transport writing its blocks to out.
func NewTransport(out io.Writer, handler CommandHandler) *Transport {
	t := &Transport{
		out:     out,
		handler: handler,
		scratch: make([]byte, 0, BlockMax),
	}
	t.next.Store(SeqDest)
	t.dec.Resynced = t.sendAck
	return t
}

// Receive consumes complete blocks from data and returns how many bytes
// were used; the caller keeps the rest for the next call.
func (t *Transport) Receive(data []byte) int {
	return t.dec.Decode(data, t.handleBlock)
}

func (t *Transport) handleBlock(b Block) {
	if b.Seq&^SeqMask != SeqDest {
		t.dec.Desync()
		return
	}

	expected := uint8(t.next.Load())
	if b.Seq == SeqDest && expected != SeqDest {
		// host restarted its sequence
		expected = SeqDest
		t.next.Store(SeqDest)
		if t.onReset != nil {
			t.onReset()
		}
	}

	if b.Seq == expected {
		t.next.Store(uint32(NextSeq(b.Seq)))
		t.dispatch(b.Payload)
	}
	// a stale sequence gets the same reply, which the host reads as a NAK
	t.sendAck()
}

func (t *Transport) dispatch(payload []byte) {
	var cmdID uint32
	defer func() {
		if r := recover(); r != nil {
			t.dec.Desync()
			t.reportError(uint16(cmdID), ErrHandlerPanic)
		}
	}()

	for len(payload) > 0 {
		var err error
		cmdID, err = DecodeVLQUint(&payload)
		if err != nil {
			t.dec.Desync()
			t.reportError(0, err)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			t.reportError(uint16(cmdID), err)
			return
		}
	}
}

func (t *Transport) reportError(cmdID uint16, err error) {
	if t.onError != nil {
		t.onError(cmdID, err)
	}
}

func (t *Transport) sendAck() {
	t.scratch, _ = AppendBlock(t.scratch[:0], uint8(t.next.Load()), nil)
	_, _ = t.out.Write(t.scratch)
	if t.flush != nil {
		t.flush()
	}
}

// SendCommand sends one message (a response, from the host's point of
// view) with the current sequence.
func (t *Transport) SendCommand(cmdID uint16, args *Args) error {
	payload := AppendVLQ(nil, int32(cmdID))
	if args != nil {
		payload = append(payload, args.Encoded()...)
	}
	var err error
	t.scratch, err = AppendBlock(t.scratch[:0], uint8(t.next.Load()), payload)
	if err != nil {
		return err
	}
	_, err = t.out.Write(t.scratch)
	return err
}

// Reset returns the transport to its power-on state, e.g. after the USB
// link was re-established.
func (t *Transport) Reset() {
	t.dec.Reset()
	t.next.Store(SeqDest)
	if t.onReset != nil {
		t.onReset()
	}
}

// SetResetCallback registers a function run whenever the host restarts
// the sequence or Reset is called.
func (t *Transport) SetResetCallback(fn func()) {
	t.onReset = fn
}

// SetErrorCallback registers a function told about handler failures.
func (t *Transport) SetErrorCallback(fn func(cmdID uint16, err error)) {
	t.onError = fn
}

// SetFlushCallback registers a function run right after each ACK is
// written, so ACKs reach the host ahead of responses.
func (t *Transport) SetFlushCallback(fn func()) {
	t.flush = fn
}
