// qpskrxd is a streaming decode service: clients open a websocket,
// stream audio samples, and receive decoded packets and blocks as JSON
// events. Decode activity is exported as Prometheus metrics.
package main

import (
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/cwsl/audioboot/qpsk"
)

type server struct {
	cfg      ServerConfig
	upgrader websocket.Upgrader

	mu        sync.Mutex
	active    int
	activeper map[string]int
}

func main() {
	configPath := flag.StringP("config", "c", "", "yaml configuration file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("[QPSKRXD] %v", err)
	}

	srv := &server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16384,
			WriteBufferSize: 4096,
		},
		activeper: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	log.Printf("[QPSKRXD] listening on %s (%d Hz, %d baud, packet %d, block %d)",
		cfg.Listen, cfg.SampleRate, cfg.SymbolRate, cfg.PacketSize, cfg.BlockSize)
	log.Fatal(http.ListenAndServe(cfg.Listen, mux))
}

// acquire reserves a session slot for the client IP.
func (s *server) acquire(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active >= s.cfg.MaxSessions || s.activeper[ip] >= s.cfg.MaxSessionsPerIP {
		return false
	}
	s.active++
	s.activeper[ip]++
	return true
}

func (s *server) release(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	s.activeper[ip]--
	if s.activeper[ip] <= 0 {
		delete(s.activeper, ip)
	}
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	if !s.acquire(ip) {
		metricSessionsRejected.Inc()
		http.Error(w, "session limit reached", http.StatusTooManyRequests)
		return
	}
	defer s.release(ip)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metricSessionsRejected.Inc()
		log.Printf("[QPSKRXD] upgrade failed for %s: %v", ip, err)
		return
	}
	defer conn.Close()

	dec, err := qpsk.NewDecoder(s.cfg.DecoderConfig())
	if err != nil {
		log.Printf("[QPSKRXD] decoder construction failed: %v", err)
		return
	}

	sess := newSession(uuid.NewString(), conn, dec, "s16le")
	if err := sess.handshake(); err != nil {
		metricSessionsRejected.Inc()
		log.Printf("[QPSKRXD] %s: handshake failed: %v", sess.id, err)
		sess.send(event{Type: "error", Kind: "handshake"})
		return
	}

	metricSessionsTotal.Inc()
	metricSessionsActive.Inc()
	defer metricSessionsActive.Dec()
	log.Printf("[QPSKRXD] %s: session open from %s", sess.id, ip)

	go sess.readPump()
	sess.run()

	log.Printf("[QPSKRXD] %s: session closed", sess.id)
}
