package qpsk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = 0x0420ACAB

// wirePacket builds the on-air byte image for a payload.
func wirePacket(t *testing.T, payload []byte) []byte {
	t.Helper()
	enc, err := NewEncoder(EncoderConfig{
		SampleRate: 48000,
		SymbolRate: 8000,
		PacketSize: len(payload),
		BlockSize:  len(payload),
		CrcSeed:    testSeed,
	})
	require.NoError(t, err)
	buf, err := enc.PacketBytes(payload)
	require.NoError(t, err)
	return buf
}

// writeWire feeds a byte image into a packet as symbols, MSB-first.
func writeWire(p *Packet, wire []byte) {
	for _, b := range wire {
		p.WriteSymbol(b >> 6 & 3)
		p.WriteSymbol(b >> 4 & 3)
		p.WriteSymbol(b >> 2 & 3)
		p.WriteSymbol(b & 3)
	}
}

func testPayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i)
	}
	return payload
}

func TestPacketSizeValidation(t *testing.T) {
	for _, size := range []int{0, -4, 3, 10} {
		_, err := NewPacket(size, 0)
		assert.Error(t, err, "size %d", size)
	}
	// 16-bit ECC covers at most 2^16 - 16 - 1 bits of data plus CRC.
	_, err := NewPacket(8184, 0)
	assert.NoError(t, err)
	_, err = NewPacket(8188, 0)
	assert.Error(t, err)
}

func TestPacketRoundTrip(t *testing.T) {
	payload := testPayload(256)
	wire := wirePacket(t, payload)

	p, err := NewPacket(256, testSeed)
	require.NoError(t, err)

	writeWire(p, wire)
	require.True(t, p.Complete())
	assert.True(t, p.Valid())
	assert.Equal(t, payload, p.Data())
	assert.Equal(t, p.ExpectedCRC(), p.CalculatedCRC())
}

func TestPacketSymbolPacking(t *testing.T) {
	// 0x6C is symbols 1,2,3,0.
	p, err := NewPacket(4, 0)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		p.WriteSymbol(1)
		p.WriteSymbol(2)
		p.WriteSymbol(3)
		p.WriteSymbol(0)
	}
	assert.Equal(t, []byte{0x6C, 0x6C, 0x6C, 0x6C}, p.Data())
}

func TestPacketReset(t *testing.T) {
	payload := testPayload(8)
	wire := wirePacket(t, payload)

	p, err := NewPacket(8, testSeed)
	require.NoError(t, err)

	// Partial fill, then reset: the next packet must still validate.
	for i := 0; i < 11; i++ {
		p.WriteSymbol(2)
	}
	p.Reset()
	assert.False(t, p.Complete())

	writeWire(p, wire)
	require.True(t, p.Complete())
	assert.True(t, p.Valid())
}

func TestPacketSingleBitErrorRepaired(t *testing.T) {
	// Any single flipped bit in the protected data+CRC region must be
	// healed by the ECC trailer before the CRC check.
	payload := testPayload(64)
	clean := wirePacket(t, payload)

	for bit := 0; bit < (64+packetCrcSize)*8; bit += 37 {
		wire := append([]byte(nil), clean...)
		wire[bit/8] ^= 1 << (bit % 8)

		p, err := NewPacket(64, testSeed)
		require.NoError(t, err)
		writeWire(p, wire)

		require.True(t, p.Complete())
		assert.True(t, p.Valid(), "bit %d", bit)
		assert.Equal(t, payload, p.Data(), "bit %d", bit)
	}
}

func TestPacketDoubleBitErrorRejected(t *testing.T) {
	payload := testPayload(64)
	wire := wirePacket(t, payload)
	wire[10] ^= 0x41 // two bits in one byte, beyond single-bit repair

	p, err := NewPacket(64, testSeed)
	require.NoError(t, err)
	writeWire(p, wire)

	require.True(t, p.Complete())
	assert.False(t, p.Valid())
}

func TestPacketEccTrailerIsLittleEndian(t *testing.T) {
	payload := testPayload(16)
	wire := wirePacket(t, payload)

	parity := HammingParity(wire[:16+packetCrcSize])
	assert.Equal(t, byte(parity), wire[16+packetCrcSize])
	assert.Equal(t, byte(parity>>8), wire[16+packetCrcSize+1])
}

func TestPacketCrcTrailerIsBigEndian(t *testing.T) {
	payload := testPayload(16)
	wire := wirePacket(t, payload)

	var c Crc32
	c.Seed(testSeed)
	c.Process(payload)
	crc := c.CRC()

	assert.Equal(t, byte(crc>>24), wire[16])
	assert.Equal(t, byte(crc), wire[19])
}

func TestPacketExtraSymbolsIgnored(t *testing.T) {
	payload := testPayload(8)
	wire := wirePacket(t, payload)

	p, err := NewPacket(8, testSeed)
	require.NoError(t, err)
	writeWire(p, wire)
	require.True(t, p.Valid())

	// Symbols past completion must not disturb the packet.
	p.WriteSymbol(3)
	p.WriteSymbol(3)
	assert.True(t, p.Valid())
	assert.Equal(t, payload, p.Data())
}
