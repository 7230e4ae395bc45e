package yamux

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/coreswarm/netcore/peer"
	"github.com/stretchr/testify/require"
)

func newTestPair(t *testing.T, cfg Config) (*Connection, *Connection) {
	t.Helper()
	a, b := net.Pipe()
	initiator := NewConnection(a, RoleInitiator, peer.ID("local-a"), peer.ID("local-b"), cfg, nil)
	responder := NewConnection(b, RoleResponder, peer.ID("local-b"), peer.ID("local-a"), cfg, nil)
	t.Cleanup(func() {
		_ = initiator.Close()
		_ = responder.Close()
	})
	return initiator, responder
}

func TestStreamOpenAndEcho(t *testing.T) {
	initiator, responder := newTestPair(t, DefaultConfig())

	serverDone := make(chan error, 1)
	go func() {
		s, err := responder.AcceptStream()
		if err != nil {
			serverDone <- err
			return
		}
		chunk, err := s.Read()
		if err != nil {
			serverDone <- err
			return
		}
		if string(chunk) != "ping" {
			serverDone <- nil
			return
		}
		if _, err := s.Write([]byte("pong")); err != nil {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clientStream, err := initiator.OpenStream(ctx)
	require.NoError(t, err)

	_, err = clientStream.Write([]byte("ping"))
	require.NoError(t, err)

	reply, err := clientStream.Read()
	require.NoError(t, err)
	require.Equal(t, "pong", string(reply))

	require.NoError(t, <-serverDone)
}

func TestStreamCloseObservedAsStreamClosed(t *testing.T) {
	initiator, responder := newTestPair(t, DefaultConfig())

	accepted := make(chan interface{ Read() ([]byte, error) }, 1)
	go func() {
		s, err := responder.AcceptStream()
		if err == nil {
			accepted <- s
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clientStream, err := initiator.OpenStream(ctx)
	require.NoError(t, err)
	require.NoError(t, clientStream.Close())

	serverStream := <-accepted
	_, err = serverStream.Read()
	require.ErrorIs(t, err, ErrStreamClosed)
}

func TestWindowExhaustionChunking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialWindowSize = 64
	cfg.EnableWindowAutoTuning = false
	initiator, responder := newTestPair(t, cfg)

	totalReceived := make(chan int, 1)
	go func() {
		s, err := responder.AcceptStream()
		require.NoError(t, err)
		received := 0
		for received < 200 {
			chunk, err := s.Read()
			require.NoError(t, err)
			received += len(chunk)
		}
		totalReceived <- received
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clientStream, err := initiator.OpenStream(ctx)
	require.NoError(t, err)

	payload := make([]byte, 200)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := clientStream.Write(payload)
	require.NoError(t, err)
	require.Equal(t, 200, n)

	select {
	case total := <-totalReceived:
		require.Equal(t, 200, total)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for all 200 bytes")
	}
}

func TestStreamIDReuseIsRejectedWithRST(t *testing.T) {
	// Feed two SYNs for the same stream ID directly over a recording
	// pipe, so we control both frames precisely and can inspect what
	// went out. The peer here plays the responder role, so its SYN IDs
	// are even.
	pipe := &recordingPipe{}
	conn := NewConnection(pipe, RoleInitiator, peer.ID("x"), peer.ID("y"), DefaultConfig(), nil)
	t.Cleanup(func() { _ = conn.Close() })

	s1, accepted := conn.acceptSYN(2)
	require.True(t, accepted)
	require.NotNil(t, s1)

	s2, accepted2 := conn.acceptSYN(2)
	require.False(t, accepted2)
	require.Nil(t, s2)

	conn.mu.Lock()
	_, stillThere := conn.streams[2]
	conn.mu.Unlock()
	require.True(t, stillThere)

	frames := pipe.frames(t)
	require.Len(t, frames, 2)
	require.True(t, frames[0].Flags.Has(FlagACK), "first SYN is acknowledged")
	require.True(t, frames[1].Flags.Has(FlagRST), "duplicate SYN is rejected")
	require.Equal(t, uint32(2), frames[1].StreamID)
}

func TestSYNWithWrongParityOrZeroIDIsRejected(t *testing.T) {
	pipe := &recordingPipe{}
	conn := NewConnection(pipe, RoleInitiator, peer.ID("x"), peer.ID("y"), DefaultConfig(), nil)
	t.Cleanup(func() { _ = conn.Close() })

	// An initiator's peer is the responder; odd IDs from it are invalid,
	// as is stream ID 0.
	for _, id := range []uint32{0, 1, 7} {
		s, accepted := conn.acceptSYN(id)
		require.False(t, accepted)
		require.Nil(t, s)
		conn.mu.Lock()
		_, created := conn.streams[id]
		conn.mu.Unlock()
		require.False(t, created)
	}

	for _, f := range pipe.frames(t) {
		require.True(t, f.Flags.Has(FlagRST))
	}
}

func TestRSTWinsOverFINOnDispatch(t *testing.T) {
	pipe := &recordingPipe{}
	conn := NewConnection(pipe, RoleInitiator, peer.ID("x"), peer.ID("y"), DefaultConfig(), nil)
	t.Cleanup(func() { _ = conn.Close() })

	s, accepted := conn.acceptSYN(2)
	require.True(t, accepted)

	conn.handleDataFrame(Frame{Type: TypeData, StreamID: 2, Flags: FlagFIN | FlagRST})

	conn.mu.Lock()
	_, still := conn.streams[2]
	conn.mu.Unlock()
	require.False(t, still, "RST removes the stream immediately; FIN on the same frame is ignored")

	s.mu.Lock()
	reset := s.isReset
	s.mu.Unlock()
	require.True(t, reset)
}

func TestWindowViolationFailsWaitersWithWindowExceeded(t *testing.T) {
	pipe := &recordingPipe{}
	cfg := DefaultConfig()
	cfg.InitialWindowSize = 8
	cfg.EnableWindowAutoTuning = false
	conn := NewConnection(pipe, RoleInitiator, peer.ID("x"), peer.ID("y"), cfg, nil)
	t.Cleanup(func() { _ = conn.Close() })

	s, accepted := conn.acceptSYN(2)
	require.True(t, accepted)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Read()
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.readWaiters) == 1
	}, time.Second, time.Millisecond)

	conn.handleDataFrame(Frame{Type: TypeData, StreamID: 2, Length: 9, Data: []byte("123456789")})

	require.ErrorIs(t, <-errCh, ErrWindowExceeded)
	conn.mu.Lock()
	_, still := conn.streams[2]
	conn.mu.Unlock()
	require.False(t, still)
}

func TestConnStatsCountsStreams(t *testing.T) {
	initiator, responder := newTestPair(t, DefaultConfig())

	accepted := make(chan struct{})
	go func() {
		_, _ = responder.AcceptStream()
		close(accepted)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := initiator.OpenStream(ctx)
	require.NoError(t, err)
	<-accepted

	require.Equal(t, 1, initiator.NumStreams())
	st := initiator.Stats()
	require.Equal(t, uint64(1), st.StreamsOpened)
	require.False(t, st.Closed)
	require.Equal(t, uint64(1), responder.Stats().StreamsAccepted)

	require.NoError(t, s.Close())
	require.Equal(t, 0, initiator.NumStreams())
}

func TestKeepAliveTimeoutClosesConnection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableKeepAlive = true
	cfg.KeepAliveInterval = 50 * time.Millisecond
	cfg.KeepAliveTimeout = 150 * time.Millisecond

	deadEnd := &discardReadWriteCloser{}
	conn := NewConnection(deadEnd, RoleInitiator, peer.ID("x"), peer.ID("y"), cfg, nil)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return conn.IsClosed()
	}, 2*time.Second, 10*time.Millisecond)

	_, err := conn.AcceptStream()
	require.Error(t, err)
}

// recordingPipe behaves like discardReadWriteCloser on the read side
// but keeps every written byte, so a test can decode exactly which
// frames a connection emitted.
type recordingPipe struct {
	discardReadWriteCloser
	mu  sync.Mutex
	buf []byte
}

func (r *recordingPipe) Write(p []byte) (int, error) {
	r.mu.Lock()
	r.buf = append(r.buf, p...)
	r.mu.Unlock()
	return len(p), nil
}

func (r *recordingPipe) frames(t *testing.T) []Frame {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Frame
	b := r.buf
	for len(b) > 0 {
		f, consumed, err := DecodeFrame(b)
		require.NoError(t, err)
		out = append(out, f)
		b = b[consumed:]
	}
	return out
}

// discardReadWriteCloser accepts writes and never produces data nor
// errors on Read until Close, simulating a peer that never answers
// pings.
type discardReadWriteCloser struct {
	closed chan struct{}
	once   sync.Once
}

func (d *discardReadWriteCloser) init() {
	d.once.Do(func() { d.closed = make(chan struct{}) })
}

func (d *discardReadWriteCloser) Read(p []byte) (int, error) {
	d.init()
	<-d.closed
	return 0, io.EOF
}
func (d *discardReadWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (d *discardReadWriteCloser) Close() error {
	d.init()
	select {
	case <-d.closed:
	default:
		close(d.closed)
	}
	return nil
}
