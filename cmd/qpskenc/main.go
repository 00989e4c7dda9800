// qpskenc converts a binary payload (typically a firmware image) into
// a WAV file carrying the QPSK audio transmission.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	flag "github.com/spf13/pflag"

	"github.com/cwsl/audioboot/qpsk"
)

func main() {
	var (
		inputFile  = flag.StringP("input-file", "i", "", "input binary file")
		outputFile = flag.StringP("output-file", "o", "", "output wav file (default input with .wav)")
		sampleRate = flag.IntP("sample-rate", "s", 48000, "sample rate in Hz")
		symbolRate = flag.IntP("carrier-frequency", "c", 8000, "carrier frequency / symbol rate in Hz")
		packetSize = flag.IntP("packet-size", "p", 256, "packet size in bytes")
		blockSize  = flag.IntP("block-size", "f", 2048, "target flash page size in bytes")
		writeGap   = flag.Float64P("page-write-time", "w", 0.25, "page write pause in seconds")
		seedArg    = flag.StringP("seed", "e", "0", "CRC-32 seed")
		fillArg    = flag.String("fill", "0xFF", "pad byte for the final block")
	)
	flag.Parse()

	if *inputFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	seed, err := strconv.ParseUint(*seedArg, 0, 32)
	if err != nil {
		log.Fatalf("[QPSKENC] bad seed %q: %v", *seedArg, err)
	}
	fill, err := strconv.ParseUint(*fillArg, 0, 8)
	if err != nil {
		log.Fatalf("[QPSKENC] bad fill byte %q: %v", *fillArg, err)
	}

	data, err := os.ReadFile(*inputFile)
	if err != nil {
		log.Fatalf("[QPSKENC] %v", err)
	}
	for len(data)%*blockSize != 0 {
		data = append(data, byte(fill))
	}

	enc, err := qpsk.NewEncoder(qpsk.EncoderConfig{
		SampleRate: *sampleRate,
		SymbolRate: *symbolRate,
		PacketSize: *packetSize,
		BlockSize:  *blockSize,
		CrcSeed:    uint32(seed),
		WriteGap:   *writeGap,
	})
	if err != nil {
		log.Fatalf("[QPSKENC] %v", err)
	}

	signal, err := enc.Encode(data)
	if err != nil {
		log.Fatalf("[QPSKENC] %v", err)
	}

	out := *outputFile
	if out == "" {
		out = *inputFile + ".wav"
	}
	if err := writeWav(out, signal, *sampleRate); err != nil {
		log.Fatalf("[QPSKENC] %v", err)
	}

	log.Printf("[QPSKENC] wrote %s: %d bytes payload, %.1f s of audio",
		out, len(data), float64(len(signal))/float64(*sampleRate))
}

func writeWav(path string, signal []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(signal)),
	}
	for i, s := range signal {
		buf.Data[i] = int(s * 32767)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return enc.Close()
}
