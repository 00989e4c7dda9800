package qpsk

import "hash/crc32"

// Crc32 is a streaming CRC-32 over the reflected IEEE polynomial
// 0xEDB88320 with a caller-supplied seed, matching zlib's
// crc32(data, seed) so both ends of the link agree. The packet trailer
// carries the result big-endian.
type Crc32 struct {
	crc uint32
}

// Seed starts a new computation from the given seed.
func (c *Crc32) Seed(seed uint32) {
	c.crc = seed
}

// Process folds a buffer into the running value.
func (c *Crc32) Process(data []byte) {
	c.crc = crc32.Update(c.crc, crc32.IEEETable, data)
}

// CRC returns the current value.
func (c *Crc32) CRC() uint32 {
	return c.crc
}
