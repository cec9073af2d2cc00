// Package protocol implements the framed serial protocol spoken between the
// soft I2C firmware and its host: VLQ-encoded commands carried in
// length-prefixed, CRC-checked blocks.
package protocol

// Version is the protocol/firmware version reported in the dictionary.
const Version = "microi2c-0.1.0"

// Block layout: len seq payload... crc_hi crc_lo sync
const (
	HeaderSize  = 2
	TrailerSize = 3
	BlockMin    = HeaderSize + TrailerSize
	BlockMax    = 64

	posLen = 0
	posSeq = 1

	SyncByte = 0x7E

	// SeqDest is carried in the high nibble of every sequence byte.
	SeqDest = 0x10
	SeqMask = 0x0F
)

// NextSeq returns the sequence byte following seq (0x10..0x1F, wrapping).
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & SeqMask) | SeqDest
}
