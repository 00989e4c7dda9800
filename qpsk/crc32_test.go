package qpsk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// referenceCrc32 is an independent bit-at-a-time implementation of the
// reflected IEEE CRC with the wire format's seed convention: the
// running register starts at ^seed and the result is its complement.
func referenceCrc32(seed uint32, data []byte) uint32 {
	const polynomial = 0xEDB88320
	crc := ^seed
	for _, b := range data {
		crc ^= uint32(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ polynomial
			} else {
				crc >>= 1
			}
		}
	}
	return ^crc
}

func TestCrc32KnownVector(t *testing.T) {
	var c Crc32
	c.Seed(0)
	c.Process([]byte("123456789"))
	assert.Equal(t, uint32(0xCBF43926), c.CRC())
}

func TestCrc32SeedAndStreaming(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint32().Draw(t, "seed")
		data := rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(t, "data")

		var c Crc32
		c.Seed(seed)
		c.Process(data)
		assert.Equal(t, referenceCrc32(seed, data), c.CRC())

		// Folding in two pieces must agree with one pass.
		split := rapid.IntRange(0, len(data)).Draw(t, "split")
		var s Crc32
		s.Seed(seed)
		s.Process(data[:split])
		s.Process(data[split:])
		assert.Equal(t, c.CRC(), s.CRC())
	})
}

func TestCrc32SingleByteSensitivity(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}

	var c Crc32
	c.Seed(0x0420ACAB)
	c.Process(data)
	want := c.CRC()

	for i := range data {
		data[i] ^= 0xFF
		var m Crc32
		m.Seed(0x0420ACAB)
		m.Process(data)
		assert.NotEqual(t, want, m.CRC(), "byte %d", i)
		data[i] ^= 0xFF
	}
}
