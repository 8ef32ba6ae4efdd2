// Package config loads the otem.yaml project configuration and layers
// OTEM_* environment overrides on top of it.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/quantity"
	"github.com/OpenTraceLab/OpenTraceEM/pkg/remote"
)

// DefaultPort is the automation socket port used when none is configured.
const DefaultPort = 52525

// Config is the complete otem configuration.
type Config struct {
	Host    Host    `koanf:"host"`
	Units   Units   `koanf:"units"`
	Logging Logging `koanf:"logging"`
}

// Host locates the desktop automation socket.
type Host struct {
	Address string   `koanf:"address"`
	Port    int      `koanf:"port"`
	Timeout Timeouts `koanf:"timeout"`
}

// Timeouts bounds the socket connect and per-call round trip.
type Timeouts struct {
	Dial time.Duration `koanf:"dial"`
	Call time.Duration `koanf:"call"`
}

// Units names the display unit per dimension for scene files and output.
type Units struct {
	Length    string `koanf:"length"`
	Angle     string `koanf:"angle"`
	Frequency string `koanf:"frequency"`
	Time      string `koanf:"time"`
	Power     string `koanf:"power"`
}

// Logging configures the slog output.
type Logging struct {
	Level string `koanf:"level"`
}

// Default returns the configuration used when no file and no environment
// overrides exist.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Host.Address == "" {
		c.Host.Address = "127.0.0.1"
	}
	if c.Host.Port == 0 {
		c.Host.Port = DefaultPort
	}
	if c.Host.Timeout.Dial == 0 {
		c.Host.Timeout.Dial = remote.DefaultDialTimeout
	}
	if c.Host.Timeout.Call == 0 {
		c.Host.Timeout.Call = remote.DefaultCallTimeout
	}
	def := quantity.DefaultSystem()
	if c.Units.Length == "" {
		c.Units.Length = def.Length
	}
	if c.Units.Angle == "" {
		c.Units.Angle = def.Angle
	}
	if c.Units.Frequency == "" {
		c.Units.Frequency = def.Frequency
	}
	if c.Units.Time == "" {
		c.Units.Time = def.Time
	}
	if c.Units.Power == "" {
		c.Units.Power = def.Power
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Addr renders the socket address in host:port form.
func (h Host) Addr() string {
	return net.JoinHostPort(h.Address, strconv.Itoa(h.Port))
}

// System builds the model unit system from the units section.
func (u Units) System() (quantity.System, error) {
	sys := quantity.System{
		Length:    u.Length,
		Angle:     u.Angle,
		Frequency: u.Frequency,
		Time:      u.Time,
		Power:     u.Power,
	}
	if err := sys.Validate(); err != nil {
		return quantity.System{}, fmt.Errorf("config: units: %w", err)
	}
	return sys, nil
}

// SlogLevel parses the configured log level.
func (l Logging) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown log level %q", l.Level)
}
