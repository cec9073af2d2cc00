package protocol

import "errors"

var (
	ErrTruncated  = errors.New("protocol: truncated argument")
	ErrInvalidVLQ = errors.New("protocol: VLQ longer than 5 bytes")
)

// AppendVLQ appends v in the variable-length encoding used for every
// integer argument: 7 bits per byte, most significant group first, with a
// continuation flag in bit 7. Values in [-32, 96) fit one byte.
func AppendVLQ(dst []byte, v int32) []byte {
	for lim := 26; lim >= 5; lim -= 7 {
		if v < -(1<<lim) || v >= 3<<lim {
			dst = append(dst, byte(v>>(lim+2))&0x7F|0x80)
		}
	}
	return append(dst, byte(v)&0x7F)
}

// AppendVLQBytes appends a length-prefixed byte string.
func AppendVLQBytes(dst []byte, b []byte) []byte {
	dst = AppendVLQ(dst, int32(len(b)))
	return append(dst, b...)
}

// DecodeVLQInt decodes one signed integer from the front of *data and
// advances the slice past it.
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrTruncated
	}
	c := buf[0]
	v := uint32(c & 0x7F)
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for c&0x80 != 0 {
		if i >= len(buf) {
			return 0, ErrTruncated
		}
		if i >= 5 {
			return 0, ErrInvalidVLQ
		}
		c = buf[i]
		i++
		v = v<<7 | uint32(c&0x7F)
	}
	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint decodes one unsigned integer.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// DecodeVLQBytes decodes a length-prefixed byte string. The result aliases
// the input.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	rest := *data
	n, err := DecodeVLQUint(&rest)
	if err != nil {
		return nil, err
	}
	if uint32(len(rest)) < n {
		return nil, ErrTruncated
	}
	*data = rest[n:]
	return rest[:n], nil
}
