package qpsk

import (
	"fmt"
	"log"
	"sync/atomic"
)

// Markers transmitted as 16 sync symbols (two bits per symbol,
// MSB-first) ahead of each region.
const (
	// BlockMarker announces a payload block.
	BlockMarker uint32 = 0xCCCCCCCC
	// EndMarker announces the end of the transmission.
	EndMarker uint32 = 0xF0F0F0F0

	markerSymbols = 16
)

// Result is what one call to Process observed.
type Result int

const (
	// ResultNone: the FIFO drained with nothing of note.
	ResultNone Result = iota
	// ResultPacketComplete: a packet validated and joined the block.
	ResultPacketComplete
	// ResultBlockComplete: the block is full; read it before the next
	// call to Process.
	ResultBlockComplete
	// ResultEnd: the transmission finished.
	ResultEnd
	// ResultError: decoding stopped; see Err.
	ResultError
)

// String returns the string representation of the result.
func (r Result) String() string {
	switch r {
	case ResultNone:
		return "None"
	case ResultPacketComplete:
		return "PacketComplete"
	case ResultBlockComplete:
		return "BlockComplete"
	case ResultEnd:
		return "End"
	case ResultError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ErrorKind classifies a decode failure.
type ErrorKind int

const (
	// ErrorNone: no failure.
	ErrorNone ErrorKind = iota
	// ErrorSync: marker mismatch or lost carrier.
	ErrorSync
	// ErrorCrc: packet CRC mismatch after Hamming repair.
	ErrorCrc
	// ErrorOverflow: the producer outran the consumer.
	ErrorOverflow
	// ErrorAbort: the producer requested termination.
	ErrorAbort
)

// String returns the string representation of the error kind.
func (e ErrorKind) String() string {
	switch e {
	case ErrorNone:
		return "None"
	case ErrorSync:
		return "Sync"
	case ErrorCrc:
		return "Crc"
	case ErrorOverflow:
		return "Overflow"
	case ErrorAbort:
		return "Abort"
	default:
		return "Unknown"
	}
}

type decoderState int

const (
	stateSync decoderState = iota
	stateDecode
	stateWrite
	stateEnd
	stateError
)

// Config holds the link parameters. They must match the transmitter.
type Config struct {
	SampleRate   int
	SymbolRate   int
	PacketSize   int
	BlockSize    int
	FifoCapacity uint32
	CrcSeed      uint32
}

// Validate checks the construction invariants.
func (c Config) Validate() error {
	if c.SymbolRate <= 0 || c.SampleRate <= 0 {
		return fmt.Errorf("invalid rates: %d/%d", c.SampleRate, c.SymbolRate)
	}
	if c.SampleRate%c.SymbolRate != 0 {
		return fmt.Errorf("sample rate %d is not a multiple of symbol rate %d", c.SampleRate, c.SymbolRate)
	}
	if _, ok := crfKernels[c.SampleRate/c.SymbolRate]; !ok {
		return fmt.Errorf("unsupported samples per symbol: %d", c.SampleRate/c.SymbolRate)
	}
	if c.PacketSize <= 0 || c.PacketSize%4 != 0 {
		return fmt.Errorf("packet size must be a positive multiple of 4, got %d", c.PacketSize)
	}
	if c.BlockSize <= 0 || c.BlockSize%c.PacketSize != 0 {
		return fmt.Errorf("block size %d is not a multiple of packet size %d", c.BlockSize, c.PacketSize)
	}
	if c.FifoCapacity == 0 || c.FifoCapacity&(c.FifoCapacity-1) != 0 {
		return fmt.Errorf("fifo capacity must be a power of two, got %d", c.FifoCapacity)
	}
	return nil
}

// Decoder is the top of the receive pipeline. The producer context
// calls Push and Abort; the consumer context calls everything else.
// Apart from the sample FIFO and the two flags, no state is shared
// across contexts.
type Decoder struct {
	cfg Config

	fifo   *SampleFIFO
	demod  *Demodulator
	packet *Packet
	block  *Block

	state       decoderState
	errorKind   ErrorKind
	marker      uint32
	markerCount int

	overflow atomic.Bool
	abort    atomic.Bool

	stats Stats
}

// NewDecoder creates a decoder for the given link parameters.
func NewDecoder(cfg Config) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fifo, err := NewSampleFIFO(cfg.FifoCapacity)
	if err != nil {
		return nil, err
	}
	demod, err := NewDemodulator(cfg.SampleRate, cfg.SymbolRate)
	if err != nil {
		return nil, err
	}
	packet, err := NewPacket(cfg.PacketSize, cfg.CrcSeed)
	if err != nil {
		return nil, err
	}
	block, err := NewBlock(cfg.BlockSize, cfg.PacketSize)
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		cfg:    cfg,
		fifo:   fifo,
		demod:  demod,
		packet: packet,
		block:  block,
	}
	d.Reset()

	log.Printf("[QPSK] decoder ready: %d Hz, %d baud, packet %d, block %d",
		cfg.SampleRate, cfg.SymbolRate, cfg.PacketSize, cfg.BlockSize)
	return d, nil
}

// Reset re-arms the decoder after an error or at startup. Gain and
// carrier are re-acquired from scratch.
func (d *Decoder) Reset() {
	d.demod.Reset()
	d.packet.Reset()
	d.block.Clear()
	d.fifo.Flush()
	d.overflow.Store(false)
	d.abort.Store(false)
	d.enterSync()
}

func (d *Decoder) enterSync() {
	d.state = stateSync
	d.errorKind = ErrorNone
	d.marker = 0
	d.markerCount = 0
}

// Push enqueues one sample. Producer context. A failed push is latched
// and surfaces as Error(Overflow) on the next Process.
func (d *Decoder) Push(sample float32) {
	if !d.fifo.Push(sample) {
		d.overflow.Store(true)
	}
}

// PushAll enqueues a sample buffer, all or nothing. Producer context.
func (d *Decoder) PushAll(samples []float32) {
	if !d.fifo.PushAll(samples) {
		d.overflow.Store(true)
	}
}

// Full reports whether the FIFO has no room. Producer context.
func (d *Decoder) Full() bool {
	return d.fifo.Full()
}

// Abort requests termination. Producer context. The consumer sees
// Error(Abort) on its next Process.
func (d *Decoder) Abort() {
	d.abort.Store(true)
}

// Err returns the latched failure, or ErrorNone.
func (d *Decoder) Err() ErrorKind {
	if d.state != stateError {
		return ErrorNone
	}
	return d.errorKind
}

// BlockBytes returns the completed block. Valid only between a
// BlockComplete result and the next call to Process.
func (d *Decoder) BlockBytes() []byte {
	return d.block.Bytes()
}

// BlockWords returns the completed block as little-endian 32-bit
// words, under the same validity rule as BlockBytes.
func (d *Decoder) BlockWords() []uint32 {
	return d.block.Words()
}

// SignalPower returns the demodulator's tracked envelope.
func (d *Decoder) SignalPower() float32 {
	return d.demod.SignalPower()
}

// Stats returns a snapshot of the decode counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

func (d *Decoder) fail(kind ErrorKind) Result {
	d.state = stateError
	d.errorKind = kind
	d.stats.Errors++
	log.Printf("[QPSK] decode error: %s", kind)
	return ResultError
}

// Process drains queued samples until a significant event or until the
// FIFO is empty. It never blocks: an empty FIFO yields ResultNone so
// the caller can schedule its own work (e.g. a flash write) in between.
//
// When the previous call returned BlockComplete, this call consumes the
// block: it clears it, re-arms carrier sync with the learned clock
// rate, and discards the stale audio that queued up while the caller
// was busy writing.
func (d *Decoder) Process() Result {
	switch d.state {
	case stateEnd:
		return ResultEnd
	case stateError:
		return ResultError
	case stateWrite:
		d.block.Clear()
		d.demod.BeginCarrierSync()
		d.fifo.Flush()
		d.enterSync()
	}

	for {
		if d.abort.Load() {
			return d.fail(ErrorAbort)
		}
		if d.overflow.Load() {
			return d.fail(ErrorOverflow)
		}

		sample, ok := d.fifo.Pop()
		if !ok {
			return ResultNone
		}
		d.stats.Samples++

		symbol, valid := d.demod.Process(sample)
		if d.demod.Failed() {
			return d.fail(ErrorSync)
		}
		if !valid {
			continue
		}

		switch d.state {
		case stateSync:
			d.marker = d.marker<<2 | uint32(symbol)
			d.markerCount++
			if d.markerCount < markerSymbols {
				continue
			}

			switch d.marker {
			case BlockMarker:
				d.packet.Reset()
				d.state = stateDecode
			case EndMarker:
				d.state = stateEnd
				d.stats.Transmissions++
				return ResultEnd
			default:
				return d.fail(ErrorSync)
			}

		case stateDecode:
			d.packet.WriteSymbol(symbol)
			if !d.packet.Complete() {
				continue
			}
			if !d.packet.Valid() {
				return d.fail(ErrorCrc)
			}

			d.block.AppendPacket(d.packet)
			d.packet.Reset()
			d.stats.Packets++

			if d.block.Full() {
				d.state = stateWrite
				d.stats.Blocks++
				return ResultBlockComplete
			}
			return ResultPacketComplete
		}
	}
}
