package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qpskrxd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9999"
symbol_rate: 6000
crc_seed: 69384875
max_sessions: 4
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, 6000, cfg.SymbolRate)
	assert.Equal(t, uint32(69384875), cfg.CrcSeed)
	assert.Equal(t, 4, cfg.MaxSessions)
	// Untouched keys keep their defaults.
	assert.Equal(t, 48000, cfg.SampleRate)
}

func TestLoadConfigRejectsBadParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qpskrxd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbol_rate: 7000\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err) // 48000/7000 is not an integer ratio
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
