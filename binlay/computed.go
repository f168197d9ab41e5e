package binlay

import (
	"hash/crc32"
	"io"
)

// Accumulator observes the bytes a field writes and derives a value from
// them: a checksum, digest, or any other function of the encoded body. A
// computed field (ComputedBy) installs one as a byte tap on its source
// field; Reset runs just before the source encodes, Final produces the
// computed field's on-wire value.
type Accumulator interface {
	io.Writer
	// Reset clears accumulated state. The lazy context of the tapped node
	// is supplied for accumulators that depend on surrounding values.
	Reset(ctx *Context)
	// Final returns the accumulated result.
	Final() (any, error)
}

// crcTable is the IEEE CRC-32 table.
var crcTable = crc32.MakeTable(crc32.IEEE)

// CRC32Accumulator computes CRC-32 IEEE over the tapped bytes.
type CRC32Accumulator struct {
	crc uint32
}

// NewCRC32 builds a CRC-32 accumulator; pass it to ComputedBy.
func NewCRC32() Accumulator { return &CRC32Accumulator{} }

func (a *CRC32Accumulator) Reset(ctx *Context) { a.crc = 0 }

func (a *CRC32Accumulator) Write(p []byte) (int, error) {
	a.crc = crc32.Update(a.crc, crcTable, p)
	return len(p), nil
}

func (a *CRC32Accumulator) Final() (any, error) { return a.crc, nil }
