package quictransport

import (
	"fmt"
	"sync"

	"github.com/quic-go/quic-go"

	"github.com/coreswarm/netcore/transport"
)

// readChunkSize bounds a single Read() call's underlying syscall, the
// same "one chunk per call" contract yamux.Stream.Read gives
// application code, so code written against MuxedStream doesn't need
// to know which transport it's riding.
const readChunkSize = 64 * 1024

// streamErrorCode is the QUIC application error code this adapter uses
// for Reset; libp2p transports don't carry meaningful per-stream error
// codes of their own, so zero is as good as any other value here.
const streamErrorCode quic.StreamErrorCode = 0

// Stream adapts a native QUIC bidirectional stream to MuxedStream. QUIC
// already gives per-stream FIN/RESET_STREAM/STOP_SENDING, so unlike
// yamux.Stream there is no frame header or window accounting to manage
// here; this is a thin translation layer, not a protocol
// implementation.
type Stream struct {
	qs quic.Stream

	mu         sync.Mutex
	protocolID string
}

func newStream(qs quic.Stream) *Stream {
	return &Stream{qs: qs}
}

// Read returns whatever one underlying Read call produced.
func (s *Stream) Read() ([]byte, error) {
	buf := make([]byte, readChunkSize)
	n, err := s.qs.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		return nil, mapStreamError(err)
	}
	return nil, nil
}

// Write writes b in full or returns the underlying error; QUIC streams
// have no fixed-size frame to chunk against, unlike yamux's send
// window.
func (s *Stream) Write(b []byte) (int, error) {
	n, err := s.qs.Write(b)
	if err != nil {
		return n, mapStreamError(err)
	}
	return n, nil
}

// CloseWrite sends FIN only, preserving in-flight bytes.
func (s *Stream) CloseWrite() error {
	return s.qs.Close()
}

// CloseRead sends STOP_SENDING, a real wire signal QUIC has and Yamux
// doesn't.
func (s *Stream) CloseRead() error {
	s.qs.CancelRead(streamErrorCode)
	return nil
}

// Close closes both directions. Idempotent: quic-go tolerates repeated
// Close/CancelRead calls on an already-closed stream.
func (s *Stream) Close() error {
	err := s.qs.Close()
	s.qs.CancelRead(streamErrorCode)
	return err
}

// Reset aborts the stream with RESET_STREAM rather than a graceful FIN.
func (s *Stream) Reset() error {
	s.qs.CancelWrite(streamErrorCode)
	s.qs.CancelRead(streamErrorCode)
	return nil
}

func (s *Stream) SetProtocolID(id string) {
	s.mu.Lock()
	s.protocolID = id
	s.mu.Unlock()
}

func (s *Stream) ProtocolID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolID
}

func mapStreamError(err error) error {
	return fmt.Errorf("quictransport: stream: %w", err)
}

var _ transport.MuxedStream = (*Stream)(nil)
