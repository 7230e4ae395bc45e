// Package config holds the knob set for the connection, transport, and
// traversal layers as plain exported-field structs: values an embedder
// constructs (or loads from a JSON document) and passes in, rather
// than a package-level global a binary reloads.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/coreswarm/netcore/internal/logging"
)

// YamuxConfig holds the per-connection multiplexer knobs.
type YamuxConfig struct {
	MaxConcurrentStreams     int           `json:"maxConcurrentStreams"`
	MaxPendingInboundStreams int           `json:"maxPendingInboundStreams"`
	InitialWindowSize        uint32        `json:"initialWindowSize"`
	EnableKeepAlive          bool          `json:"enableKeepAlive"`
	KeepAliveInterval        time.Duration `json:"keepAliveInterval"`
	KeepAliveTimeout         time.Duration `json:"keepAliveTimeout"`
	EnableWindowAutoTuning   bool          `json:"enableWindowAutoTuning"`
	MaxAutoTuneWindow        uint32        `json:"maxAutoTuneWindow"`
}

// DefaultYamuxConfig returns the stock multiplexer settings.
func DefaultYamuxConfig() YamuxConfig {
	return YamuxConfig{
		MaxConcurrentStreams:     1000,
		MaxPendingInboundStreams: 100,
		InitialWindowSize:        256 * 1024,
		EnableKeepAlive:          true,
		KeepAliveInterval:        30 * time.Second,
		KeepAliveTimeout:         60 * time.Second,
		EnableWindowAutoTuning:   true,
		MaxAutoTuneWindow:        16 * 1024 * 1024,
	}
}

// Validate checks cross-field invariants, notably that the ping
// cadence does not exceed the dead-peer timeout.
func (c YamuxConfig) Validate() error {
	if c.KeepAliveInterval > c.KeepAliveTimeout {
		return fmt.Errorf("config: keepAliveInterval (%v) must be <= keepAliveTimeout (%v)", c.KeepAliveInterval, c.KeepAliveTimeout)
	}
	if c.MaxConcurrentStreams <= 0 {
		return fmt.Errorf("config: maxConcurrentStreams must be positive")
	}
	if c.MaxPendingInboundStreams <= 0 {
		return fmt.Errorf("config: maxPendingInboundStreams must be positive")
	}
	return nil
}

// QUICConfig controls the QUIC adapter.
type QUICConfig struct {
	HandshakeTimeout time.Duration `json:"handshakeTimeout"`
	Enable0RTT       bool          `json:"enable0RTT"`
	KeepAlivePeriod  time.Duration `json:"keepAlivePeriod"`
}

func DefaultQUICConfig() QUICConfig {
	return QUICConfig{
		HandshakeTimeout: 10 * time.Second,
		Enable0RTT:       true,
		KeepAlivePeriod:  15 * time.Second,
	}
}

// HolePunchConfig controls the QUIC hole-punch coordinator.
type HolePunchConfig struct {
	Timeout              time.Duration `json:"timeout"`
	SimultaneousAttempts int           `json:"simultaneousAttempts"`
	RetryDelay           time.Duration `json:"retryDelay"`
}

func DefaultHolePunchConfig() HolePunchConfig {
	return HolePunchConfig{
		Timeout:              10 * time.Second,
		SimultaneousAttempts: 3,
		RetryDelay:           200 * time.Millisecond,
	}
}

// Config bundles every knob set plus the logging config, so a single
// JSON document (or a single literal) can configure an embedding
// process end to end.
type Config struct {
	Logging   logging.Config  `json:"logging"`
	Yamux     YamuxConfig     `json:"yamux"`
	QUIC      QUICConfig      `json:"quic"`
	HolePunch HolePunchConfig `json:"holePunch"`
}

// DefaultConfig returns the defaults for every subsystem.
func DefaultConfig() Config {
	return Config{
		Logging:   logging.DefaultConfig(),
		Yamux:     DefaultYamuxConfig(),
		QUIC:      DefaultQUICConfig(),
		HolePunch: DefaultHolePunchConfig(),
	}
}

// LoadConfig reads a JSON document at path, overlaying it onto the
// defaults, and validates the result. Embedders that want to construct
// Config literally instead may skip this entirely.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Yamux.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
