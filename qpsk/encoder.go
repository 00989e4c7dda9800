package qpsk

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncoderConfig holds the transmit-side link parameters. They must
// match the receiving decoder.
type EncoderConfig struct {
	SampleRate int
	SymbolRate int
	PacketSize int
	BlockSize  int
	CrcSeed    uint32

	// WriteGap is the zero-symbol carrier pause after each block,
	// long enough for the receiver to persist the block and re-sync.
	// Zero means 0.25 s.
	WriteGap float64
}

const (
	defaultWriteGap = 0.25
	introSilence    = 1.0
	introLeader     = 1.0
	outroLeader     = 0.25
)

// Encoder generates the audio-band QPSK transmission the decoder
// consumes. The high-level Encode covers the whole wire format; the
// Append methods expose the individual regions so tests and tools can
// assemble partial or deliberately corrupted transmissions.
type Encoder struct {
	cfg              EncoderConfig
	samplesPerSymbol int
	symbolShapes     [4][]float32
	signal           []float32
}

// NewEncoder creates an encoder for the given link parameters.
func NewEncoder(cfg EncoderConfig) (*Encoder, error) {
	if cfg.SymbolRate <= 0 || cfg.SampleRate <= 0 || cfg.SampleRate%cfg.SymbolRate != 0 {
		return nil, fmt.Errorf("sample rate %d is not a multiple of symbol rate %d", cfg.SampleRate, cfg.SymbolRate)
	}
	if cfg.PacketSize <= 0 || cfg.PacketSize%4 != 0 {
		return nil, fmt.Errorf("packet size must be a positive multiple of 4, got %d", cfg.PacketSize)
	}
	if cfg.BlockSize <= 0 || cfg.BlockSize%cfg.PacketSize != 0 {
		return nil, fmt.Errorf("block size %d is not a multiple of packet size %d", cfg.BlockSize, cfg.PacketSize)
	}
	if cfg.WriteGap == 0 {
		cfg.WriteGap = defaultWriteGap
	}

	e := &Encoder{
		cfg:              cfg,
		samplesPerSymbol: cfg.SampleRate / cfg.SymbolRate,
	}

	// One carrier cycle per symbol; the four constellation points are
	// phase offsets of the same cycle, scaled to stay within +/-1.
	for symbol := 0; symbol < 4; symbol++ {
		msb := float64(symbol&2) - 1
		lsb := float64(symbol&1)*2 - 1
		shape := make([]float32, e.samplesPerSymbol)
		for i := range shape {
			phase := 2 * math.Pi * float64(i) / float64(e.samplesPerSymbol)
			shape[i] = float32((msb*math.Cos(phase) - lsb*math.Sin(phase)) / math.Sqrt2)
		}
		e.symbolShapes[symbol] = shape
	}

	return e, nil
}

// Reset discards the signal buffer.
func (e *Encoder) Reset() {
	e.signal = e.signal[:0]
}

// Samples returns the signal generated so far.
func (e *Encoder) Samples() []float32 {
	return e.signal
}

// AppendSymbol emits one symbol period.
func (e *Encoder) AppendSymbol(symbol uint8) {
	e.signal = append(e.signal, e.symbolShapes[symbol&3]...)
}

// AppendSilence emits flat silence.
func (e *Encoder) AppendSilence(seconds float64) {
	n := int(seconds * float64(e.cfg.SampleRate))
	e.signal = append(e.signal, make([]float32, n)...)
}

// AppendLeader emits unmodulated carrier (a run of zero symbols), used
// for gain settling, carrier sync and write gaps.
func (e *Encoder) AppendLeader(seconds float64) {
	n := int(seconds * float64(e.cfg.SymbolRate))
	for i := 0; i < n; i++ {
		e.AppendSymbol(0)
	}
}

// AppendAlignment emits the timing run: the {2,1} pattern repeated once
// per correlation peak the receiver averages. The receiver's correlator
// is already primed on the leader and flags one peak per period, so the
// final peak lands exactly on the last period boundary and the next
// decided symbol is the first marker symbol.
func (e *Encoder) AppendAlignment() {
	for i := 0; i < numCorrelationPeaks; i++ {
		for _, s := range alignmentPattern {
			e.AppendSymbol(s)
		}
	}
}

// AppendMarker emits a 32-bit marker as 16 symbols, MSB-first.
func (e *Encoder) AppendMarker(marker uint32) {
	for shift := 30; shift >= 0; shift -= 2 {
		e.AppendSymbol(uint8(marker >> shift & 3))
	}
}

// AppendBytes emits raw bytes, four symbols each, MSB-first.
func (e *Encoder) AppendBytes(data []byte) {
	for _, b := range data {
		e.AppendSymbol(b >> 6 & 3)
		e.AppendSymbol(b >> 4 & 3)
		e.AppendSymbol(b >> 2 & 3)
		e.AppendSymbol(b & 3)
	}
}

// PacketBytes frames one packet for the wire: payload, big-endian
// CRC-32, little-endian ECC word covering payload and CRC.
func (e *Encoder) PacketBytes(data []byte) ([]byte, error) {
	if len(data) != e.cfg.PacketSize {
		return nil, fmt.Errorf("packet payload is %d bytes, want %d", len(data), e.cfg.PacketSize)
	}

	buf := make([]byte, len(data)+packetCrcSize+packetEccSize)
	copy(buf, data)

	var crc Crc32
	crc.Seed(e.cfg.CrcSeed)
	crc.Process(data)
	binary.BigEndian.PutUint32(buf[len(data):], crc.CRC())

	ecc := HammingParity(buf[:len(data)+packetCrcSize])
	binary.LittleEndian.PutUint16(buf[len(data)+packetCrcSize:], ecc)

	return buf, nil
}

// AppendPacket frames and emits one packet.
func (e *Encoder) AppendPacket(data []byte) error {
	buf, err := e.PacketBytes(data)
	if err != nil {
		return err
	}
	e.AppendBytes(buf)
	return nil
}

// Encode produces a complete transmission for the payload, whose
// length must be a multiple of the block size. The buffer is reset
// first.
func (e *Encoder) Encode(payload []byte) ([]float32, error) {
	if len(payload) == 0 || len(payload)%e.cfg.BlockSize != 0 {
		return nil, fmt.Errorf("payload length %d is not a positive multiple of block size %d", len(payload), e.cfg.BlockSize)
	}

	e.Reset()
	e.AppendSilence(introSilence)
	e.AppendLeader(introLeader)

	for off := 0; off < len(payload); off += e.cfg.BlockSize {
		e.AppendAlignment()
		e.AppendMarker(BlockMarker)
		for p := off; p < off+e.cfg.BlockSize; p += e.cfg.PacketSize {
			if err := e.AppendPacket(payload[p : p+e.cfg.PacketSize]); err != nil {
				return nil, err
			}
		}
		e.AppendLeader(e.cfg.WriteGap)
	}

	e.AppendAlignment()
	e.AppendMarker(EndMarker)
	e.AppendLeader(outroLeader)

	return e.signal, nil
}
