package yamux

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/coreswarm/netcore/internal/logging"
	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/transport"
	"go.uber.org/zap"
	"lukechampine.com/frand"
)

// Role determines stream ID parity: initiators open odd IDs, responders
// even, matching the side that dialed the underlying pipe.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// Connection multiplexes many byte streams over one underlying secured
// pipe. It owns the pipe and every stream registered under it;
// closing it transitively and idempotently terminates all streams.
type Connection struct {
	pipe   io.ReadWriteCloser
	role   Role
	local  peer.ID
	remote peer.ID
	cfg    Config
	logger *zap.Logger

	writeMu sync.Mutex

	mu              sync.Mutex
	streams         map[uint32]*Stream
	nextStreamID    uint32
	pendingSynAcks  map[uint32]chan error
	inboundStreams  chan *Stream
	pendingPings    map[uint32]time.Time
	streamsOpened   uint64
	streamsAccepted uint64
	closed          bool
	goAwayReceived  bool
	closeErr        error
	causeReported   bool

	readLoopDone chan struct{}
}

// NewConnection constructs a Connection over pipe and immediately
// starts its read loop (and keep-alive loop, if enabled). The caller
// must not use pipe directly afterward.
func NewConnection(pipe io.ReadWriteCloser, role Role, local, remote peer.ID, cfg Config, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = logging.Nop()
	}
	startID := uint32(2)
	if role == RoleInitiator {
		startID = 1
	}
	c := &Connection{
		pipe:           pipe,
		role:           role,
		local:          local,
		remote:         remote,
		cfg:            cfg,
		logger:         logger,
		streams:        make(map[uint32]*Stream),
		nextStreamID:   startID,
		pendingSynAcks: make(map[uint32]chan error),
		inboundStreams: make(chan *Stream, cfg.MaxPendingInboundStreams),
		pendingPings:   make(map[uint32]time.Time),
		readLoopDone:   make(chan struct{}),
	}
	go c.readLoop()
	if cfg.EnableKeepAlive {
		go c.keepAliveLoop()
	}
	return c
}

// LocalPeer and RemotePeer satisfy transport.MuxedConn.
func (c *Connection) LocalPeer() peer.ID  { return c.local }
func (c *Connection) RemotePeer() peer.ID { return c.remote }

// IsClosed reports whether the connection has shut down.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ConnStats is a point-in-time snapshot of a connection's stream
// bookkeeping, for embedders that want cheap counters without a full
// metrics subsystem.
type ConnStats struct {
	NumStreams      int
	StreamsOpened   uint64
	StreamsAccepted uint64
	Closed          bool
}

// NumStreams reports how many streams are currently registered.
func (c *Connection) NumStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// Stats returns a snapshot of the connection's stream counters.
func (c *Connection) Stats() ConnStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnStats{
		NumStreams:      len(c.streams),
		StreamsOpened:   c.streamsOpened,
		StreamsAccepted: c.streamsAccepted,
		Closed:          c.closed,
	}
}

// OpenStream emits a SYN and blocks until the peer ACKs, the context
// is cancelled, or the connection fails.
func (c *Connection) OpenStream(ctx context.Context) (transport.MuxedStream, error) {
	c.mu.Lock()
	if c.closed || c.goAwayReceived {
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	if len(c.streams) >= c.cfg.MaxConcurrentStreams {
		c.mu.Unlock()
		return nil, ErrMaxStreamsExceeded
	}
	id := c.nextStreamID
	next := id + 2
	if next < id {
		c.mu.Unlock()
		return nil, ErrStreamIDExhausted
	}
	c.nextStreamID = next

	s := newStream(id, c, c.cfg.InitialWindowSize, c.cfg.MaxAutoTuneWindow, c.cfg.EnableWindowAutoTuning)
	c.streams[id] = s
	c.streamsOpened++
	ackCh := make(chan error, 1)
	c.pendingSynAcks[id] = ackCh
	c.mu.Unlock()

	if err := c.writeFrame(Frame{Type: TypeData, Flags: FlagSYN, StreamID: id}); err != nil {
		c.mu.Lock()
		delete(c.streams, id)
		delete(c.pendingSynAcks, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case err := <-ackCh:
		if err != nil {
			return nil, err
		}
		return s, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pendingSynAcks, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// AcceptStream returns the next inbound stream the peer opened, in
// arrival order, blocking until one arrives or the connection closes.
func (c *Connection) AcceptStream() (transport.MuxedStream, error) {
	s, ok := <-c.inboundStreams
	if !ok {
		return nil, c.shutdownCause()
	}
	return s, nil
}

// shutdownCause reports the error that triggered shutdown exactly once;
// every call after the first normalizes to ErrConnectionClosed, matching
// the per-stream shutdown paths (shutdownAbrupt/shutdownGraceful).
func (c *Connection) shutdownCause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.causeReported {
		return ErrConnectionClosed
	}
	c.causeReported = true
	if c.closeErr != nil {
		return c.closeErr
	}
	return ErrConnectionClosed
}

// writeFrame and forgetStream implement frameWriter for Stream.
func (c *Connection) writeFrame(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.pipe.Write(EncodeFrame(f))
	return err
}

func (c *Connection) forgetStream(id uint32) {
	c.mu.Lock()
	delete(c.streams, id)
	c.mu.Unlock()
}

func (c *Connection) resolvePendingSynAck(id uint32, err error) {
	c.mu.Lock()
	ch, ok := c.pendingSynAcks[id]
	if ok {
		delete(c.pendingSynAcks, id)
	}
	c.mu.Unlock()
	if ok {
		ch <- err
	}
}

// validPeerParity reports whether an inbound SYN's stream ID carries
// the parity the peer's role is entitled to use.
func (c *Connection) validPeerParity(id uint32) bool {
	peerIsInitiator := c.role == RoleResponder
	idIsOdd := id%2 == 1
	return idIsOdd == peerIsInitiator
}

// readLoop is the connection's single reader: it pulls bytes off the
// pipe, reassembles frames, and dispatches them. It is the only task
// permitted to block on pipe.Read.
func (c *Connection) readLoop() {
	defer close(c.readLoopDone)

	buf := make([]byte, 0, 64*1024)
	tmp := make([]byte, 64*1024)

	for {
		n, err := c.pipe.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			c.abruptShutdown(err)
			return
		}
		if len(buf) > MaxReceiveBuffer {
			c.abruptShutdown(ErrReadBufferOverflow)
			return
		}

		offset := 0
		for {
			f, consumed, ferr := DecodeFrame(buf[offset:])
			if ferr == errNeedMoreData {
				break
			}
			if ferr != nil {
				// Every decode-time fault (bad version/type, oversized
				// frame) is connection-scoped: a malformed header gives
				// no reliable stream to blame.
				c.logger.Warn("frame decode failed", zap.Error(ferr))
				c.abruptShutdown(ferr)
				return
			}
			offset += consumed
			c.logger.Debug("dispatching frame",
				zap.Uint8("type", uint8(f.Type)),
				zap.Uint32("streamID", f.StreamID),
				zap.Uint16("flags", uint16(f.Flags)))
			if exit := c.dispatch(f); exit {
				return
			}
		}
		if offset > 0 {
			buf = append(buf[:0], buf[offset:]...)
		}
	}
}

// dispatch handles one decoded frame. It returns true when the read
// loop must exit (goAway received).
func (c *Connection) dispatch(f Frame) bool {
	switch f.Type {
	case TypeData:
		c.handleDataFrame(f)
	case TypeWindowUpdate:
		c.handleWindowUpdateFrame(f)
	case TypePing:
		c.handlePingFrame(f)
	case TypeGoAway:
		c.mu.Lock()
		c.goAwayReceived = true
		c.mu.Unlock()
		c.abruptShutdown(ErrConnectionClosed)
		return true
	}
	return false
}

func (c *Connection) handleDataFrame(f Frame) {
	if f.Flags.Has(FlagRST) {
		c.removeAndReset(f.StreamID)
		return
	}

	var s *Stream
	if f.Flags.Has(FlagSYN) {
		var ok bool
		s, ok = c.acceptSYN(f.StreamID)
		if !ok {
			return
		}
	} else {
		c.mu.Lock()
		s = c.streams[f.StreamID]
		c.mu.Unlock()
		if s == nil {
			if f.StreamID != 0 {
				_ = c.writeFrame(Frame{Type: TypeData, Flags: FlagRST, StreamID: f.StreamID})
			}
			return
		}
	}

	if f.Flags.Has(FlagACK) {
		c.resolvePendingSynAck(f.StreamID, nil)
	}

	if len(f.Data) > 0 {
		if !s.handleData(f.Data) {
			c.logger.Warn("peer exceeded advertised window", zap.Uint32("streamID", f.StreamID))
			c.mu.Lock()
			delete(c.streams, f.StreamID)
			c.mu.Unlock()
			s.handleWindowViolation()
			c.resolvePendingSynAck(f.StreamID, ErrStreamClosed)
			_ = c.writeFrame(Frame{Type: TypeData, Flags: FlagRST, StreamID: f.StreamID})
			return
		}
	}

	if f.Flags.Has(FlagFIN) {
		s.handleFIN()
	}
}

// acceptSYN validates and, if accepted, creates and delivers a new
// inbound stream. On any rejection it sends RST itself and returns
// ok=false; the caller has nothing further to do.
func (c *Connection) acceptSYN(id uint32) (*Stream, bool) {
	reject := func(reason string) (*Stream, bool) {
		c.logger.Warn("rejecting inbound SYN", zap.Uint32("streamID", id), zap.String("reason", reason))
		_ = c.writeFrame(Frame{Type: TypeData, Flags: FlagRST, StreamID: id})
		return nil, false
	}

	if id == 0 || !c.validPeerParity(id) {
		return reject("invalid stream id")
	}

	c.mu.Lock()
	if c.closed || c.goAwayReceived {
		c.mu.Unlock()
		return reject("connection closing")
	}
	if _, exists := c.streams[id]; exists {
		c.mu.Unlock()
		return reject("stream id already in use")
	}
	if len(c.streams) >= c.cfg.MaxConcurrentStreams {
		c.mu.Unlock()
		return reject("concurrent stream limit reached")
	}
	s := newStream(id, c, c.cfg.InitialWindowSize, c.cfg.MaxAutoTuneWindow, c.cfg.EnableWindowAutoTuning)
	c.streams[id] = s

	// The send attempt happens while still holding mu, so it cannot
	// race with shutdown() closing this same channel under mu.
	delivered := false
	select {
	case c.inboundStreams <- s:
		delivered = true
	default:
	}
	if delivered {
		c.streamsAccepted++
	} else {
		delete(c.streams, id)
	}
	c.mu.Unlock()

	if !delivered {
		return reject("pending inbound stream buffer full")
	}
	_ = c.writeFrame(Frame{Type: TypeData, Flags: FlagACK, StreamID: id})
	return s, true
}

func (c *Connection) removeAndReset(id uint32) {
	c.logger.Debug("stream reset", zap.Uint32("streamID", id))
	c.mu.Lock()
	s := c.streams[id]
	delete(c.streams, id)
	c.mu.Unlock()
	if s != nil {
		s.handleRST()
	}
	c.resolvePendingSynAck(id, ErrStreamClosed)
}

func (c *Connection) handleWindowUpdateFrame(f Frame) {
	c.mu.Lock()
	s := c.streams[f.StreamID]
	c.mu.Unlock()
	if s != nil {
		s.handleWindowUpdate(f.Length)
	}
}

func (c *Connection) handlePingFrame(f Frame) {
	if f.Flags.Has(FlagACK) {
		c.mu.Lock()
		delete(c.pendingPings, f.Length)
		c.mu.Unlock()
		return
	}
	_ = c.writeFrame(Frame{Type: TypePing, Flags: FlagACK, StreamID: 0, Length: f.Length})
}

func (c *Connection) keepAliveLoop() {
	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.readLoopDone:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			now := time.Now()
			for _, sent := range c.pendingPings {
				if now.Sub(sent) > c.cfg.KeepAliveTimeout {
					c.mu.Unlock()
					c.abruptShutdown(ErrKeepAliveTimeout)
					return
				}
			}
			var nonceBytes [4]byte
			frand.Read(nonceBytes[:])
			nonce := binary.BigEndian.Uint32(nonceBytes[:])
			c.pendingPings[nonce] = now
			c.mu.Unlock()
			_ = c.writeFrame(Frame{Type: TypePing, StreamID: 0, Length: nonce})
		}
	}
}

// Close performs a graceful shutdown: every stream sees FIN, a best-
// effort goAway is sent, and the underlying pipe is closed. Idempotent.
func (c *Connection) Close() error {
	return c.shutdown(true, nil)
}

// abruptShutdown is invoked on read errors, a received goAway, or a
// keep-alive timeout: every stream is reset locally (no FIN) and the
// pipe is closed without ceremony.
func (c *Connection) abruptShutdown(cause error) {
	_ = c.shutdown(false, cause)
}

func (c *Connection) shutdown(graceful bool, cause error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if cause == nil {
		cause = ErrConnectionClosed
	}
	c.closeErr = cause
	if graceful {
		c.logger.Debug("connection closing", zap.Error(cause))
	} else {
		c.logger.Warn("connection shutting down abruptly", zap.Error(cause))
	}

	streams := make([]*Stream, 0, len(c.streams))
	for _, s := range c.streams {
		streams = append(streams, s)
	}
	c.streams = make(map[uint32]*Stream)
	pendingSyn := c.pendingSynAcks
	c.pendingSynAcks = make(map[uint32]chan error)
	close(c.inboundStreams)
	c.mu.Unlock()

	for _, ch := range pendingSyn {
		ch <- cause
	}

	for _, s := range streams {
		if graceful {
			s.shutdownGraceful()
		} else {
			s.shutdownAbrupt()
		}
	}

	if graceful {
		_ = c.writeFrame(Frame{Type: TypeGoAway, StreamID: 0, Length: 0})
	}
	return c.pipe.Close()
}

var _ transport.MuxedConn = (*Connection)(nil)
