package yamux

import (
	"sync"
	"time"

	"github.com/coreswarm/netcore/transport"
)

var _ transport.MuxedStream = (*Stream)(nil)

// frameWriter is the single-writer surface a Stream uses to emit
// frames. Connection implements it by funnelling every write through
// one mutex so wire bytes for distinct frames never interleave.
type frameWriter interface {
	writeFrame(f Frame) error
	forgetStream(id uint32)
}

// readWaiter is a single caller suspended in Read, waiting either for
// buffered data to arrive or for the stream to close. Exactly one is
// resumed per delivery, preserving FIFO order.
type readWaiter struct {
	data chan []byte
	err  chan error
}

// writeWaiter is a single caller suspended in Write, waiting for send
// window credit.
type writeWaiter struct {
	done chan struct{}
}

// Stream is one multiplexed byte stream within a Connection. Every
// field below is guarded by mu; waiters are always resumed after mu
// is released, never while it is held.
type Stream struct {
	id   uint32
	conn frameWriter
	flow *FlowController

	mu                sync.Mutex
	sendWindow        uint32
	recvBuf           []byte
	readWaiters       []*readWaiter
	writeWaiters      []*writeWaiter
	localReadClosed   bool
	localWriteClosed  bool
	remoteWriteClosed bool
	isReset           bool
	closeErr          error // populated once the stream is no longer usable
	protocolID        string
}

// SetProtocolID records which application protocol negotiated this
// stream, for callers that inspect it later (logging, routing).
func (s *Stream) SetProtocolID(id string) {
	s.mu.Lock()
	s.protocolID = id
	s.mu.Unlock()
}

// ProtocolID returns whatever was last passed to SetProtocolID, or "".
func (s *Stream) ProtocolID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolID
}

func newStream(id uint32, conn frameWriter, initialWindow, maxWindow uint32, autoTune bool) *Stream {
	return &Stream{
		id:         id,
		conn:       conn,
		flow:       NewFlowController(initialWindow, maxWindow, autoTune),
		sendWindow: initialWindow,
	}
}

// ID returns the stream's wire identifier.
func (s *Stream) ID() uint32 { return s.id }

// Read returns one chunk of received data. Buffered bytes are always
// returned before closure is reported, even if the stream closed while
// they sat in the reassembly buffer.
func (s *Stream) Read() ([]byte, error) {
	s.mu.Lock()
	if len(s.recvBuf) > 0 {
		chunk := s.recvBuf
		s.recvBuf = nil
		s.mu.Unlock()
		s.reportConsumed(len(chunk))
		return chunk, nil
	}
	if s.isReset {
		err := s.closeErr
		s.mu.Unlock()
		return nil, err
	}
	if s.localReadClosed || s.remoteWriteClosed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}

	w := &readWaiter{data: make(chan []byte, 1), err: make(chan error, 1)}
	s.readWaiters = append(s.readWaiters, w)
	s.mu.Unlock()

	select {
	case chunk := <-w.data:
		s.reportConsumed(len(chunk))
		return chunk, nil
	case err := <-w.err:
		return nil, err
	}
}

// Write sends b in chunks bounded by the current send window, blocking
// between chunks until windowUpdate frames arrive. It fails fast if
// the stream is already closed or reset, and observes that state again
// at every chunk boundary.
func (s *Stream) Write(b []byte) (int, error) {
	written := 0
	for len(b) > 0 {
		n, err := s.writeChunk(b)
		written += n
		if err != nil {
			return written, err
		}
		b = b[n:]
	}
	return written, nil
}

func (s *Stream) writeChunk(b []byte) (int, error) {
	s.mu.Lock()
	if s.isReset || s.localWriteClosed {
		err := s.closeErr
		if err == nil {
			err = ErrStreamClosed
		}
		s.mu.Unlock()
		return 0, err
	}

	for s.sendWindow == 0 {
		w := &writeWaiter{done: make(chan struct{}, 1)}
		s.writeWaiters = append(s.writeWaiters, w)
		s.mu.Unlock()

		select {
		case <-w.done:
		case <-time.After(windowWriteTimeout):
			return 0, ErrWriteTimeout
		}

		s.mu.Lock()
		if s.isReset || s.localWriteClosed {
			err := s.closeErr
			if err == nil {
				err = ErrStreamClosed
			}
			s.mu.Unlock()
			return 0, err
		}
	}

	n := len(b)
	if uint32(n) > s.sendWindow {
		n = int(s.sendWindow)
	}
	s.sendWindow -= uint32(n)
	chunk := b[:n]
	s.mu.Unlock()

	if err := s.conn.writeFrame(Frame{Type: TypeData, StreamID: s.id, Length: uint32(n), Data: chunk}); err != nil {
		return 0, err
	}
	return n, nil
}

// CloseWrite sends FIN and marks the local write side closed. Idempotent.
func (s *Stream) CloseWrite() error {
	s.mu.Lock()
	if s.localWriteClosed {
		s.mu.Unlock()
		return nil
	}
	s.localWriteClosed = true
	waiters := s.writeWaiters
	s.writeWaiters = nil
	s.mu.Unlock()

	failWriteWaiters(waiters)
	return s.conn.writeFrame(Frame{Type: TypeData, Flags: FlagFIN, StreamID: s.id})
}

// CloseRead discards the reassembly buffer and fails pending readers.
// Yamux has no STOP_SENDING; subsequent inbound data is silently
// dropped by handleData once localReadClosed is set.
func (s *Stream) CloseRead() error {
	s.mu.Lock()
	if s.localReadClosed {
		s.mu.Unlock()
		return nil
	}
	s.localReadClosed = true
	s.recvBuf = nil
	waiters := s.readWaiters
	s.readWaiters = nil
	s.mu.Unlock()

	failReadWaiters(waiters, ErrStreamClosed)
	return nil
}

// Close half-closes both directions, then deregisters the stream from
// its connection. Idempotent.
func (s *Stream) Close() error {
	werr := s.CloseWrite()
	_ = s.CloseRead()
	s.conn.forgetStream(s.id)
	return werr
}

// Reset abruptly terminates the stream: emits RST, fails every waiter,
// and deregisters.
func (s *Stream) Reset() error {
	s.mu.Lock()
	if s.isReset {
		s.mu.Unlock()
		return nil
	}
	s.isReset = true
	s.closeErr = ErrStreamClosed
	rwaiters := s.readWaiters
	wwaiters := s.writeWaiters
	s.readWaiters = nil
	s.writeWaiters = nil
	s.mu.Unlock()

	failReadWaiters(rwaiters, ErrStreamClosed)
	failWriteWaiters(wwaiters)
	s.conn.forgetStream(s.id)
	return s.conn.writeFrame(Frame{Type: TypeData, Flags: FlagRST, StreamID: s.id})
}

// handleData is invoked by the connection's read loop for an inbound
// data frame. It returns false if the peer exceeded the advertised
// window, a protocol violation the caller must answer with RST.
func (s *Stream) handleData(payload []byte) bool {
	if len(payload) > 0 && !s.flow.DataReceived(uint32(len(payload))) {
		return false
	}

	s.mu.Lock()
	if s.localReadClosed {
		s.mu.Unlock()
		return true
	}
	if len(s.readWaiters) > 0 && len(payload) > 0 {
		w := s.readWaiters[0]
		s.readWaiters = s.readWaiters[1:]
		s.mu.Unlock()
		w.data <- append([]byte(nil), payload...)
		return true
	}
	if len(payload) > 0 {
		s.recvBuf = append(s.recvBuf, payload...)
	}
	s.mu.Unlock()
	return true
}

// handleWindowUpdate credits sendWindow, saturating at MaxFrameLength,
// and wakes exactly one waiter.
func (s *Stream) handleWindowUpdate(delta uint32) {
	s.mu.Lock()
	newWindow := uint64(s.sendWindow) + uint64(delta)
	if newWindow > MaxFrameLength {
		newWindow = MaxFrameLength
	}
	s.sendWindow = uint32(newWindow)
	var w *writeWaiter
	if len(s.writeWaiters) > 0 {
		w = s.writeWaiters[0]
		s.writeWaiters = s.writeWaiters[1:]
	}
	s.mu.Unlock()

	if w != nil {
		w.done <- struct{}{}
	}
}

// handleFIN marks the remote write side closed.
func (s *Stream) handleFIN() {
	s.mu.Lock()
	s.remoteWriteClosed = true
	hasData := len(s.recvBuf) > 0
	var waiters []*readWaiter
	if !hasData {
		waiters = s.readWaiters
		s.readWaiters = nil
	}
	s.mu.Unlock()
	failReadWaiters(waiters, ErrStreamClosed)
}

// handleRST marks the stream reset and fails every waiter. The caller
// is responsible for removing the stream from the connection's table.
func (s *Stream) handleRST() {
	s.mu.Lock()
	s.isReset = true
	s.closeErr = ErrStreamClosed
	rwaiters := s.readWaiters
	wwaiters := s.writeWaiters
	s.readWaiters = nil
	s.writeWaiters = nil
	s.mu.Unlock()

	failReadWaiters(rwaiters, ErrStreamClosed)
	failWriteWaiters(wwaiters)
}

// handleWindowViolation is handleRST for a windowExceeded protocol
// fault: same teardown, but waiters observe the violation rather than
// a plain close.
func (s *Stream) handleWindowViolation() {
	s.mu.Lock()
	s.isReset = true
	s.closeErr = ErrWindowExceeded
	rwaiters := s.readWaiters
	wwaiters := s.writeWaiters
	s.readWaiters = nil
	s.writeWaiters = nil
	s.mu.Unlock()

	failReadWaiters(rwaiters, ErrWindowExceeded)
	failWriteWaiters(wwaiters)
}

// consumed reports n freshly delivered bytes to the flow controller and
// returns a windowUpdate frame to send, if the policy calls for one.
func (s *Stream) consumed(n uint32) (Frame, bool) {
	delta, ok := s.flow.DataConsumed(n)
	if !ok {
		return Frame{}, false
	}
	return Frame{Type: TypeWindowUpdate, StreamID: s.id, Length: delta}, true
}

// reportConsumed is the Read-path hook that turns flow-controller
// policy into an actual windowUpdate frame on the wire.
func (s *Stream) reportConsumed(n int) {
	if n <= 0 {
		return
	}
	if f, ok := s.consumed(uint32(n)); ok {
		_ = s.conn.writeFrame(f)
	}
}

// shutdownGraceful is used by connection-level graceful shutdown: it
// marks the stream closed, fails waiters, and emits FIN on the wire.
func (s *Stream) shutdownGraceful() {
	s.mu.Lock()
	s.localWriteClosed = true
	s.localReadClosed = true
	s.closeErr = ErrConnectionClosed
	rwaiters := s.readWaiters
	wwaiters := s.writeWaiters
	s.readWaiters = nil
	s.writeWaiters = nil
	s.mu.Unlock()

	failReadWaiters(rwaiters, ErrConnectionClosed)
	failWriteWaiters(wwaiters)
	_ = s.conn.writeFrame(Frame{Type: TypeData, Flags: FlagFIN, StreamID: s.id})
}

// shutdownAbrupt is used by connection-level abrupt shutdown: local
// bookkeeping only, no wire effect (the pipe is already being torn down).
func (s *Stream) shutdownAbrupt() {
	s.mu.Lock()
	s.isReset = true
	s.closeErr = ErrConnectionClosed
	rwaiters := s.readWaiters
	wwaiters := s.writeWaiters
	s.readWaiters = nil
	s.writeWaiters = nil
	s.mu.Unlock()

	failReadWaiters(rwaiters, ErrConnectionClosed)
	failWriteWaiters(wwaiters)
}

func failReadWaiters(waiters []*readWaiter, err error) {
	for _, w := range waiters {
		w.err <- err
	}
}

func failWriteWaiters(waiters []*writeWaiter) {
	for _, w := range waiters {
		w.done <- struct{}{}
	}
}
