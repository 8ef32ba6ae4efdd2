package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/quantity"
)

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600))
}

func TestLoadFromDirDefaults(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host.Address)
	assert.Equal(t, DefaultPort, cfg.Host.Port)
	assert.Equal(t, 5*time.Second, cfg.Host.Timeout.Dial)
	assert.Equal(t, 30*time.Second, cfg.Host.Timeout.Call)
	assert.Equal(t, "mm", cfg.Units.Length)
	assert.Equal(t, "deg", cfg.Units.Angle)
	assert.Equal(t, "GHz", cfg.Units.Frequency)
	assert.Equal(t, "ns", cfg.Units.Time)
	assert.Equal(t, "dBm", cfg.Units.Power)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:52525", cfg.Host.Addr())
}

func TestLoadFromDirFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `host:
  address: bench-07
  port: 9100
  timeout:
    dial: 2s
    call: 10s
units:
  length: cm
  frequency: MHz
logging:
  level: debug
`)

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, "bench-07", cfg.Host.Address)
	assert.Equal(t, 9100, cfg.Host.Port)
	assert.Equal(t, "bench-07:9100", cfg.Host.Addr())
	assert.Equal(t, 2*time.Second, cfg.Host.Timeout.Dial)
	assert.Equal(t, 10*time.Second, cfg.Host.Timeout.Call)
	assert.Equal(t, "cm", cfg.Units.Length)
	assert.Equal(t, "MHz", cfg.Units.Frequency)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields keep their defaults.
	assert.Equal(t, "deg", cfg.Units.Angle)
	assert.Equal(t, "ns", cfg.Units.Time)
	assert.Equal(t, "dBm", cfg.Units.Power)
}

func TestLoadFromDirEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `host:
  port: 9100
units:
  length: cm
`)

	t.Setenv("OTEM_HOST_PORT", "9200")
	t.Setenv("OTEM_HOST_TIMEOUT_DIAL", "1s")
	t.Setenv("OTEM_UNITS_LENGTH", "m")
	t.Setenv("OTEM_LOGGING_LEVEL", "warning")

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Host.Port, "environment should override the file")
	assert.Equal(t, time.Second, cfg.Host.Timeout.Dial)
	assert.Equal(t, "m", cfg.Units.Length)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestLoadFromDirRejectsBadValues(t *testing.T) {
	t.Run("wrong unit dimension", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "units:\n  length: deg\n")
		_, err := LoadFromDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is angle, want length")
	})

	t.Run("unknown unit", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "units:\n  power: banana\n")
		_, err := LoadFromDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown unit")
	})

	t.Run("unknown log level", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "logging:\n  level: loud\n")
		_, err := LoadFromDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown log level")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "host: [\n")
		_, err := LoadFromDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config: read")
	})
}

func TestUnitsSystem(t *testing.T) {
	sys, err := Default().Units.System()
	require.NoError(t, err)
	assert.Equal(t, quantity.DefaultSystem(), sys)

	_, err = Units{Length: "Hz"}.System()
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
	}
	for _, tt := range tests {
		level, err := Logging{Level: tt.level}.SlogLevel()
		require.NoError(t, err)
		assert.Equal(t, tt.want, level)
	}

	_, err := Logging{Level: "verbose"}.SlogLevel()
	require.Error(t, err)
}
