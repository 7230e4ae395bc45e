package yamux

import (
	"time"

	"github.com/coreswarm/netcore/internal/config"
)

// Config is the recognized option table for a Connection. The
// canonical struct lives in internal/config so a single JSON document
// can configure every layer; yamux just uses it directly.
type Config = config.YamuxConfig

// DefaultConfig returns the stock option values.
func DefaultConfig() Config { return config.DefaultYamuxConfig() }

const (
	// MaxFrameLength caps a single data frame's payload.
	MaxFrameLength = 16 * 1024 * 1024
	// MaxReceiveBuffer caps the connection's reassembly buffer.
	MaxReceiveBuffer = 32 * 1024 * 1024
	// windowWriteTimeout bounds how long a write waits for window credit.
	windowWriteTimeout = 30 * time.Second
)
