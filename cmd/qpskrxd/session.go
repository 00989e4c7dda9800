package main

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	version "github.com/hashicorp/go-version"

	"github.com/cwsl/audioboot/qpsk"
)

// Client protocol versions this server speaks.
var protocolConstraint = version.MustConstraints(version.NewConstraint(">= 1.0, < 2.0"))

// helloMessage is the first text frame a client sends.
type helloMessage struct {
	Type    string `json:"type"`
	Version string `json:"version"`
	Format  string `json:"format"`
}

// controlMessage covers the in-band commands after the hello.
type controlMessage struct {
	Type string `json:"type"`
}

// event is a server-to-client JSON frame.
type event struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`
	Data string `json:"data,omitempty"`
	Kind string `json:"kind,omitempty"`
}

// session couples one websocket to one decoder. The websocket read
// pump is the sample producer; a separate goroutine runs the decode
// loop as the consumer. The two touch nothing but the decoder's FIFO
// and flags, so the core's concurrency contract carries over directly.
type session struct {
	id      string
	conn    *websocket.Conn
	decoder *qpsk.Decoder
	float   bool

	writeMu sync.Mutex
	resetCh chan struct{}
	closed  chan struct{}
}

func newSession(id string, conn *websocket.Conn, dec *qpsk.Decoder, format string) *session {
	return &session{
		id:      id,
		conn:    conn,
		decoder: dec,
		float:   format == "f32le",
		resetCh: make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

func (s *session) send(ev event) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(ev); err != nil {
		log.Printf("[QPSKRXD] %s: write failed: %v", s.id, err)
	}
}

// readPump is the producer context: it only pushes samples and flags.
func (s *session) readPump() {
	defer close(s.closed)

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.decoder.Abort()
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			samples := s.decodeSamples(data)
			s.decoder.PushAll(samples)
			metricSamples.Add(float64(len(samples)))

		case websocket.TextMessage:
			var cmd controlMessage
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			switch cmd.Type {
			case "abort":
				s.decoder.Abort()
			case "reset":
				select {
				case s.resetCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (s *session) decodeSamples(data []byte) []float32 {
	if s.float {
		samples := make([]float32, len(data)/4)
		for i := range samples {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
		return samples
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
	}
	return samples
}

// run is the consumer context: the decode loop.
func (s *session) run() {
	var packetSeq, blockSeq uint64

	for {
		select {
		case <-s.closed:
			return
		case <-s.resetCh:
			s.decoder.Reset()
			s.send(event{Type: "ready"})
		default:
		}

		switch r := s.decoder.Process(); r {
		case qpsk.ResultNone:
			time.Sleep(2 * time.Millisecond)

		case qpsk.ResultPacketComplete:
			packetSeq++
			metricPackets.Inc()
			s.send(event{Type: "packet", Seq: packetSeq})

		case qpsk.ResultBlockComplete:
			packetSeq++
			blockSeq++
			metricPackets.Inc()
			metricBlocks.Inc()
			s.send(event{
				Type: "block",
				Seq:  blockSeq,
				Data: base64.StdEncoding.EncodeToString(s.decoder.BlockBytes()),
			})

		case qpsk.ResultEnd:
			metricTransmissions.Inc()
			s.send(event{Type: "end"})
			// A new transmission needs an explicit reset.
			select {
			case <-s.closed:
				return
			case <-s.resetCh:
				s.decoder.Reset()
				s.send(event{Type: "ready"})
			}

		case qpsk.ResultError:
			kind := s.decoder.Err()
			metricErrors.WithLabelValues(kind.String()).Inc()
			if kind == qpsk.ErrorAbort {
				// Either a client abort command or the socket went
				// away; in both cases the client knows already.
				select {
				case <-s.closed:
					return
				default:
				}
			}
			s.send(event{Type: "error", Kind: kind.String()})
			select {
			case <-s.closed:
				return
			case <-s.resetCh:
				s.decoder.Reset()
				s.send(event{Type: "ready"})
			}

		default:
			log.Printf("[QPSKRXD] %s: unexpected result %v", s.id, r)
		}
	}
}

// handshake validates the client hello and answers it.
func (s *session) handshake() error {
	s.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer s.conn.SetReadDeadline(time.Time{})

	var hello helloMessage
	if err := s.conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	if hello.Type != "hello" {
		return fmt.Errorf("first frame is %q, want hello", hello.Type)
	}

	v, err := version.NewVersion(hello.Version)
	if err != nil {
		return fmt.Errorf("bad client version %q: %w", hello.Version, err)
	}
	if !protocolConstraint.Check(v) {
		return fmt.Errorf("unsupported client version %s (need %s)", v, protocolConstraint)
	}

	switch hello.Format {
	case "f32le", "s16le":
		s.float = hello.Format == "f32le"
	default:
		return fmt.Errorf("unsupported sample format %q", hello.Format)
	}

	s.send(event{Type: "ready"})
	return nil
}
