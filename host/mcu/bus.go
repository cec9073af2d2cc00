package mcu

import (
	"context"
	"fmt"

	"microi2c/protocol"
)

// BusConfig describes a software bus to create on the firmware.
type BusConfig struct {
	OID            uint8
	SCLPin         uint32
	SDAPin         uint32
	DelayUS        uint32
	StretchLimitUS uint32
}

// ScanResult is the answer to one scan. Count can exceed len(Addresses)
// when more devices answered than the requested capacity.
type ScanResult struct {
	Status    Status
	Count     int
	Addresses []uint8
}

// maxTransfer returns the firmware's per-message data limit.
func (c *Client) maxTransfer() int {
	if n, ok := c.dict.Constant("SOFT_I2C_MAX_TRANSFER"); ok {
		return n
	}
	return protocol.BlockMax - 16
}

// ConfigureBus creates (or replaces) the bus under cfg.OID.
func (c *Client) ConfigureBus(ctx context.Context, cfg BusConfig) error {
	var args protocol.Args
	args.Uint(uint32(cfg.OID)).
		Uint(cfg.SCLPin).
		Uint(cfg.SDAPin).
		Uint(cfg.DelayUS).
		Uint(cfg.StretchLimitUS)
	return c.Send(ctx, "config_soft_i2c", &args)
}

// Scan probes the bus for responding addresses, storing up to capacity.
func (c *Client) Scan(ctx context.Context, oid uint8, capacity int) (*ScanResult, error) {
	if c.dict == nil {
		return nil, ErrNoDictionary
	}
	if capacity < 0 || capacity > c.maxTransfer() {
		return nil, fmt.Errorf("%w: capacity %d", ErrTransferTooLarge, capacity)
	}

	var args protocol.Args
	args.Uint(uint32(oid)).Uint(uint32(capacity))
	resp, err := c.Call(ctx, "soft_i2c_scan", &args, "soft_i2c_scan_response")
	if err != nil {
		return nil, err
	}

	status, err := decodeHeader(&resp, oid)
	if err != nil {
		return nil, err
	}
	count, err := protocol.DecodeVLQUint(&resp)
	if err != nil {
		return nil, fmt.Errorf("%w: count: %w", ErrBadResponse, err)
	}
	addrs, err := protocol.DecodeVLQBytes(&resp)
	if err != nil {
		return nil, fmt.Errorf("%w: addrs: %w", ErrBadResponse, err)
	}
	return &ScanResult{
		Status:    status,
		Count:     int(count),
		Addresses: append([]uint8(nil), addrs...),
	}, nil
}

// Write sends data to addr in one transaction. A bus-level failure is
// returned as the status's error.
func (c *Client) Write(ctx context.Context, oid, addr uint8, data []byte) error {
	if c.dict == nil {
		return ErrNoDictionary
	}
	if len(data) > c.maxTransfer() {
		return fmt.Errorf("%w: %d bytes", ErrTransferTooLarge, len(data))
	}

	var args protocol.Args
	args.Uint(uint32(oid)).Uint(uint32(addr)).Bytes(data)
	resp, err := c.Call(ctx, "soft_i2c_write", &args, "soft_i2c_write_response")
	if err != nil {
		return err
	}
	status, err := decodeHeader(&resp, oid)
	if err != nil {
		return err
	}
	return status.Err()
}

// Read writes reg (which may be empty) and then reads n bytes from addr
// after a repeated start.
func (c *Client) Read(ctx context.Context, oid, addr uint8, reg []byte, n int) ([]byte, error) {
	if c.dict == nil {
		return nil, ErrNoDictionary
	}
	if n < 0 || n > c.maxTransfer() || len(reg) > c.maxTransfer() {
		return nil, fmt.Errorf("%w: %d bytes", ErrTransferTooLarge, n)
	}

	var args protocol.Args
	args.Uint(uint32(oid)).Uint(uint32(addr)).Bytes(reg).Uint(uint32(n))
	resp, err := c.Call(ctx, "soft_i2c_read", &args, "soft_i2c_read_response")
	if err != nil {
		return nil, err
	}
	status, err := decodeHeader(&resp, oid)
	if err != nil {
		return nil, err
	}
	if err := status.Err(); err != nil {
		return nil, err
	}
	data, err := protocol.DecodeVLQBytes(&resp)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %w", ErrBadResponse, err)
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrBadResponse, len(data), n)
	}
	return append([]byte(nil), data...), nil
}

// decodeHeader consumes the oid and status common to every bus response.
func decodeHeader(resp *[]byte, oid uint8) (Status, error) {
	got, err := protocol.DecodeVLQUint(resp)
	if err != nil {
		return 0, fmt.Errorf("%w: oid: %w", ErrBadResponse, err)
	}
	if got != uint32(oid) {
		return 0, fmt.Errorf("%w: oid %d, want %d", ErrBadResponse, got, oid)
	}
	status, err := protocol.DecodeVLQUint(resp)
	if err != nil {
		return 0, fmt.Errorf("%w: status: %w", ErrBadResponse, err)
	}
	return Status(status), nil
}
