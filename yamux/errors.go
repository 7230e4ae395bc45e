package yamux

import "errors"

// Protocol faults: the peer violated the frame or stream-lifecycle
// contract. Stream-scoped faults answer with RST and the read loop
// continues; connection-scoped faults escape the read loop and trigger
// abrupt shutdown.
var (
	ErrInvalidVersion      = errors.New("yamux: invalid frame version")
	ErrInvalidFrameType    = errors.New("yamux: invalid frame type")
	ErrFrameTooLarge       = errors.New("yamux: data frame exceeds maximum length")
	ErrReadBufferOverflow  = errors.New("yamux: reassembly buffer exceeds maximum size")
	ErrWindowExceeded      = errors.New("yamux: peer sent more data than the advertised window")
	ErrStreamIDReused      = errors.New("yamux: stream ID already in use")
	ErrInvalidStreamParity = errors.New("yamux: SYN stream ID has wrong parity for peer role")
	ErrMaxStreamsExceeded  = errors.New("yamux: concurrent stream limit reached")
)

// Resource exhaustion: fatal for the current attempt, never retried
// against alternate traversal candidates.
var (
	ErrStreamIDExhausted      = errors.New("yamux: stream ID space exhausted")
	ErrConnectionLimitReached = errors.New("yamux: connection limit reached")
)

// Lifecycle.
var (
	ErrStreamClosed     = errors.New("yamux: stream closed")
	ErrConnectionClosed = errors.New("yamux: connection closed")
)

// Timing.
var (
	ErrKeepAliveTimeout = errors.New("yamux: keep-alive timeout, peer presumed dead")
	ErrWriteTimeout     = errors.New("yamux: write timed out waiting for window credit")
)
