// Package mcu talks to the soft I2C firmware over its serial protocol.
package mcu

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"microi2c/host/serial"
	"microi2c/protocol"
)

// Bootstrap message IDs, fixed before the dictionary is known.
const (
	identifyResponseID = 0
	identifyID         = 1

	identifyChunk = 40
	maxChunks     = 1000
)

// Dictionary is the message dictionary the firmware serves through identify.
type Dictionary struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]int    `json:"commands"`
	Responses map[string]int    `json:"responses"`

	byName map[string]int
}

// ID returns the ID of the command or response called name.
func (d *Dictionary) ID(name string) (uint16, bool) {
	id, ok := d.byName[name]
	return uint16(id), ok
}

// Constant returns a firmware constant parsed as an integer.
func (d *Dictionary) Constant(name string) (int, bool) {
	v, ok := d.Config[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func (d *Dictionary) index() {
	d.byName = make(map[string]int, len(d.Commands)+len(d.Responses))
	for _, m := range []map[string]int{d.Commands, d.Responses} {
		for sig, id := range m {
			name, _, _ := strings.Cut(sig, " ")
			d.byName[name] = id
		}
	}
}

// ParseDictionary decodes the JSON dictionary document.
func ParseDictionary(data []byte) (*Dictionary, error) {
	d := &Dictionary{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	d.index()
	return d, nil
}

// Client is a connection to one firmware instance.
type Client struct {
	transport *protocol.HostTransport
	logger    *zap.Logger
	timeout   time.Duration

	dict *Dictionary
	raw  []byte
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger; it is passed on to the transport.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTimeout bounds each command round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New starts a client on an open byte stream.
func New(port io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		logger:  zap.NewNop(),
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport = protocol.NewHostTransport(port, protocol.WithLogger(c.logger.Named("link")))
	return c
}

// Open opens the serial device and starts a client on it.
func Open(cfg *serial.Config, opts ...Option) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flushing %s: %w", cfg.Device, err)
	}
	return New(port, opts...), nil
}

// Close stops the client and closes its port.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Identify downloads and parses the firmware dictionary.
func (c *Client) Identify(ctx context.Context) error {
	var buf bytes.Buffer
	for i := 0; i < maxChunks; i++ {
		chunk, err := c.identifyChunk(ctx, uint32(buf.Len()))
		if err != nil {
			return fmt.Errorf("retrieving dictionary at offset %d: %w", buf.Len(), err)
		}
		buf.Write(chunk)
		if len(chunk) < identifyChunk {
			break
		}
	}

	raw, err := inflateDictionary(buf.Bytes())
	if err != nil {
		return err
	}
	dict, err := ParseDictionary(raw)
	if err != nil {
		return err
	}
	c.raw = raw
	c.dict = dict
	c.logger.Info("identified firmware",
		zap.String("version", dict.Version),
		zap.Int("commands", len(dict.Commands)),
		zap.Int("responses", len(dict.Responses)),
		zap.Int("bytes", len(c.raw)))
	return nil
}

func (c *Client) identifyChunk(ctx context.Context, offset uint32) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var args protocol.Args
	args.Uint(offset).Uint(identifyChunk)
	resp, err := c.transport.Call(ctx, identifyID, &args, identifyResponseID)
	if err != nil {
		return nil, err
	}

	got, err := protocol.DecodeVLQUint(&resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if got != offset {
		return nil, fmt.Errorf("%w: offset %d, want %d", ErrBadResponse, got, offset)
	}
	data, err := protocol.DecodeVLQBytes(&resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return data, nil
}

// Dictionary returns the dictionary loaded by Identify, or nil.
func (c *Client) Dictionary() *Dictionary {
	return c.dict
}

// inflateDictionary unwraps the zlib stream identify returns.
func inflateDictionary(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: dictionary: %w", ErrBadResponse, err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: dictionary: %w", ErrBadResponse, err)
	}
	return raw, nil
}

// RawDictionary returns the dictionary JSON as downloaded and inflated.
func (c *Client) RawDictionary() []byte {
	return c.raw
}

func (c *Client) lookup(name string) (uint16, error) {
	if c.dict == nil {
		return 0, ErrNoDictionary
	}
	id, ok := c.dict.ID(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return id, nil
}

// Send sends the named command and waits for its acknowledgement.
func (c *Client) Send(ctx context.Context, name string, args *protocol.Args) error {
	id, err := c.lookup(name)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.transport.Send(ctx, id, args); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Call sends the named command and returns the arguments of the named
// response.
func (c *Client) Call(ctx context.Context, name string, args *protocol.Args, response string) ([]byte, error) {
	id, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	respID, err := c.lookup(response)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.transport.Call(ctx, id, args, respID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	c.logger.Debug("call complete", zap.String("command", name), zap.Duration("rtt", time.Since(start)))
	return resp, nil
}
