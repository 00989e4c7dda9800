package qpsk

import (
	"encoding/binary"
	"fmt"
)

// Block accumulates validated packets into the unit handed to the
// caller, typically one flash page.
type Block struct {
	data []byte
	size int
}

// NewBlock creates a block of blockSize bytes, which must be a positive
// multiple of the packet size.
func NewBlock(blockSize, packetSize int) (*Block, error) {
	if blockSize <= 0 || packetSize <= 0 || blockSize%packetSize != 0 {
		return nil, fmt.Errorf("block size %d is not a multiple of packet size %d", blockSize, packetSize)
	}
	return &Block{data: make([]byte, blockSize)}, nil
}

// Clear resets the block to empty.
func (b *Block) Clear() {
	b.size = 0
}

// AppendPacket copies a completed packet's payload into the block. A
// packet that would overflow is ignored.
func (b *Block) AppendPacket(p *Packet) {
	if b.size+p.Size() > len(b.data) {
		return
	}
	copy(b.data[b.size:], p.Data())
	b.size += p.Size()
}

// Full reports whether the block holds a complete page.
func (b *Block) Full() bool {
	return b.size == len(b.data)
}

// Bytes returns the block contents. Only stable between a BlockComplete
// result and the next call to Process.
func (b *Block) Bytes() []byte {
	return b.data
}

// Words returns the block as 32-bit words in little-endian byte order,
// the layout a word-programmed flash expects.
func (b *Block) Words() []uint32 {
	words := make([]uint32, len(b.data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b.data[4*i:])
	}
	return words
}
