// qpskrx decodes a WAV file carrying a QPSK audio transmission back
// into the binary payload, standing in for the bootloader that would
// normally consume the sample stream from its ADC.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-audio/wav"
	flag "github.com/spf13/pflag"

	"github.com/cwsl/audioboot/qpsk"
)

func main() {
	var (
		inputFile    = flag.StringP("input-file", "i", "", "input wav file")
		outputFile   = flag.StringP("output-file", "o", "", "output binary file (default input with .bin)")
		symbolRate   = flag.IntP("carrier-frequency", "c", 8000, "carrier frequency / symbol rate in Hz")
		packetSize   = flag.IntP("packet-size", "p", 256, "packet size in bytes")
		blockSize    = flag.IntP("block-size", "f", 2048, "block size in bytes")
		fifoCapacity = flag.Uint32("fifo-capacity", 1024, "sample fifo capacity (power of two)")
		seedArg      = flag.StringP("seed", "e", "0", "CRC-32 seed")
	)
	flag.Parse()

	if *inputFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	seed, err := strconv.ParseUint(*seedArg, 0, 32)
	if err != nil {
		log.Fatalf("[QPSKRX] bad seed %q: %v", *seedArg, err)
	}

	samples, sampleRate, err := readWav(*inputFile)
	if err != nil {
		log.Fatalf("[QPSKRX] %v", err)
	}
	log.Printf("[QPSKRX] %s: %d samples at %d Hz", *inputFile, len(samples), sampleRate)

	dec, err := qpsk.NewDecoder(qpsk.Config{
		SampleRate:   sampleRate,
		SymbolRate:   *symbolRate,
		PacketSize:   *packetSize,
		BlockSize:    *blockSize,
		FifoCapacity: *fifoCapacity,
		CrcSeed:      uint32(seed),
	})
	if err != nil {
		log.Fatalf("[QPSKRX] %v", err)
	}

	out := *outputFile
	if out == "" {
		out = *inputFile + ".bin"
	}
	f, err := os.Create(out)
	if err != nil {
		log.Fatalf("[QPSKRX] %v", err)
	}
	defer f.Close()

	chunk := int(*fifoCapacity) / 2
	done := false
	for start := 0; start < len(samples) && !done; start += chunk {
		end := min(start+chunk, len(samples))
		dec.PushAll(samples[start:end])

	drain:
		for {
			switch dec.Process() {
			case qpsk.ResultPacketComplete:
			case qpsk.ResultBlockComplete:
				if _, err := f.Write(dec.BlockBytes()); err != nil {
					log.Fatalf("[QPSKRX] %v", err)
				}
			case qpsk.ResultEnd:
				done = true
				break drain
			case qpsk.ResultError:
				log.Fatalf("[QPSKRX] decode failed: %s", dec.Err())
			default:
				break drain
			}
		}
	}

	if !done {
		log.Fatalf("[QPSKRX] stream ended before the end marker")
	}

	stats := dec.Stats()
	log.Printf("[QPSKRX] wrote %s: %d packets, %d blocks", out, stats.Packets, stats.Blocks)
}

func readWav(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	if buf.Format.NumChannels != 1 {
		return nil, 0, fmt.Errorf("%s has %d channels, want mono", path, buf.Format.NumChannels)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(1) / float32(int(1)<<(bitDepth-1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) * scale
	}
	return samples, buf.Format.SampleRate, nil
}
