package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwsl/audioboot/qpsk"
)

// ServerConfig is the yaml configuration for qpskrxd.
type ServerConfig struct {
	Listen string `yaml:"listen"`

	SampleRate   int    `yaml:"sample_rate"`
	SymbolRate   int    `yaml:"symbol_rate"`
	PacketSize   int    `yaml:"packet_size"`
	BlockSize    int    `yaml:"block_size"`
	FifoCapacity uint32 `yaml:"fifo_capacity"`
	CrcSeed      uint32 `yaml:"crc_seed"`

	MaxSessions      int `yaml:"max_sessions"`
	MaxSessionsPerIP int `yaml:"max_sessions_per_ip"`
}

// DefaultConfig returns the baked-in defaults.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		Listen:           ":8730",
		SampleRate:       48000,
		SymbolRate:       8000,
		PacketSize:       256,
		BlockSize:        2048,
		FifoCapacity:     4096,
		MaxSessions:      16,
		MaxSessionsPerIP: 2,
	}
}

// LoadConfig reads the yaml file at path over the defaults. An empty
// path returns the defaults unchanged.
func LoadConfig(path string) (ServerConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks server limits and the embedded decoder parameters.
func (c ServerConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.MaxSessions <= 0 || c.MaxSessionsPerIP <= 0 {
		return fmt.Errorf("session limits must be positive")
	}
	return c.DecoderConfig().Validate()
}

// DecoderConfig maps the server config onto the decoder parameters.
func (c ServerConfig) DecoderConfig() qpsk.Config {
	return qpsk.Config{
		SampleRate:   c.SampleRate,
		SymbolRate:   c.SymbolRate,
		PacketSize:   c.PacketSize,
		BlockSize:    c.BlockSize,
		FifoCapacity: c.FifoCapacity,
		CrcSeed:      c.CrcSeed,
	}
}
