//go:build !tinygo

package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrClosed = errors.New("protocol: transport closed")
	ErrNAK    = errors.New("protocol: block not acknowledged")
)

// HostTransport is the host side of the link. A background goroutine
// decodes everything the firmware sends; commands are sent one at a time
// and each waits for its ACK.
type HostTransport struct {
	port   io.ReadWriteCloser
	logger *zap.Logger

	callMu sync.Mutex // one command in flight
	seq    uint8

	acks      chan Block
	responses chan []byte

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// HostOption configures a HostTransport.
type HostOption func(*HostTransport)

// WithLogger sets the logger used for link diagnostics.
func WithLogger(l *zap.Logger) HostOption {
	return func(t *HostTransport) {
		t.logger = l
	}
}

// NewHostTransport starts reading from port and returns the transport.
func NewHostTransport(port io.ReadWriteCloser, opts ...HostOption) *HostTransport {
	t := &HostTransport{
		port:      port,
		logger:    zap.NewNop(),
		seq:       SeqDest,
		acks:      make(chan Block, 1),
		responses: make(chan []byte, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.readLoop()
	return t
}

// Send transmits one command and waits for the firmware to acknowledge it.
func (t *HostTransport) Send(ctx context.Context, cmdID uint16, args *Args) error {
	t.callMu.Lock()
	defer t.callMu.Unlock()
	return t.send(ctx, cmdID, args)
}

// Call transmits one command and waits for the response message respID.
// It returns the response arguments, with the message ID already consumed.
func (t *HostTransport) Call(ctx context.Context, cmdID uint16, args *Args, respID uint16) ([]byte, error) {
	t.callMu.Lock()
	defer t.callMu.Unlock()

	t.drainResponses()
	if err := t.send(ctx, cmdID, args); err != nil {
		return nil, err
	}

	for {
		select {
		case payload := <-t.responses:
			data := payload
			id, err := DecodeVLQUint(&data)
			if err != nil {
				t.logger.Debug("dropping undecodable response", zap.Error(err))
				continue
			}
			if uint16(id) != respID {
				t.logger.Debug("skipping unrelated response",
					zap.Uint32("msg_id", id),
					zap.Uint16("want", respID))
				continue
			}
			return data, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for response %d: %w", respID, ctx.Err())
		case <-t.done:
			return nil, ErrClosed
		}
	}
}

func (t *HostTransport) send(ctx context.Context, cmdID uint16, args *Args) error {
	payload := AppendVLQ(nil, int32(cmdID))
	if args != nil {
		payload = append(payload, args.Encoded()...)
	}
	block, err := AppendBlock(nil, t.seq, payload)
	if err != nil {
		return fmt.Errorf("encoding command %d: %w", cmdID, err)
	}

	select {
	case <-t.acks:
	default:
	}

	if _, err := t.port.Write(block); err != nil {
		return fmt.Errorf("writing command %d: %w", cmdID, err)
	}
	t.logger.Debug("sent block", zap.Uint8("seq", t.seq), zap.Int("len", len(block)))

	select {
	case ack := <-t.acks:
		want := NextSeq(t.seq)
		if ack.Seq != want {
			return fmt.Errorf("%w: firmware expects seq %#02x, sent %#02x", ErrNAK, ack.Seq, t.seq)
		}
		t.seq = want
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for ack: %w", ctx.Err())
	case <-t.done:
		return ErrClosed
	}
}

func (t *HostTransport) drainResponses() {
	for {
		select {
		case <-t.responses:
		default:
			return
		}
	}
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	var dec Decoder
	dec.Resynced = func() {
		t.logger.Warn("serial stream resynchronised")
	}

	buf := make([]byte, 256)
	var pending []byte
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			used := dec.Decode(pending, t.dispatch)
			pending = append(pending[:0], pending[used:]...)
		}
		if err != nil {
			select {
			case <-t.stop:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				t.logger.Debug("serial port closed", zap.Error(err))
				return
			}
			t.logger.Warn("serial read failed", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) dispatch(b Block) {
	if len(b.Payload) == 0 {
		select {
		case t.acks <- b:
		default:
			t.logger.Debug("dropping unexpected ack", zap.Uint8("seq", b.Seq))
		}
		return
	}

	payload := append([]byte(nil), b.Payload...)
	select {
	case t.responses <- payload:
	default:
		// full: make room by dropping the oldest
		select {
		case <-t.responses:
		default:
		}
		t.responses <- payload
	}
}

// Seq returns the sequence the next command will carry.
func (t *HostTransport) Seq() uint8 {
	t.callMu.Lock()
	defer t.callMu.Unlock()
	return t.seq
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
