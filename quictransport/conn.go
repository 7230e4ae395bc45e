package quictransport

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/transport"
)

// closeErrorCode is the QUIC connection-level application error code
// used for a local, graceful Close; there is no peer-visible taxonomy
// to encode here.
const closeErrorCode quic.ApplicationErrorCode = 0

// Connection adapts a native QUIC connection, already secured and
// peer-identified via the libp2p-TLS handshake, to MuxedConn. Unlike
// yamux.Connection there is no stream table, flow controller, or
// keep-alive loop to implement: QUIC already multiplexes, flow
// controls, and keeps itself alive natively, so this type only
// translates method names and error types.
type Connection struct {
	qc         quic.Connection
	localPeer  peer.ID
	remotePeer peer.ID
	closed     atomic.Bool
}

func newConnection(qc quic.Connection, local, remote peer.ID) *Connection {
	return &Connection{qc: qc, localPeer: local, remotePeer: remote}
}

// OpenStream opens a new bidirectional QUIC stream, blocking until one
// is available under the peer's concurrent-stream limit or ctx is
// cancelled.
func (c *Connection) OpenStream(ctx context.Context) (transport.MuxedStream, error) {
	qs, err := c.qc.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("quictransport: open stream: %w", err)
	}
	return newStream(qs), nil
}

// AcceptStream returns the next peer-initiated stream in arrival order.
func (c *Connection) AcceptStream() (transport.MuxedStream, error) {
	qs, err := c.qc.AcceptStream(context.Background())
	if err != nil {
		return nil, fmt.Errorf("quictransport: accept stream: %w", err)
	}
	return newStream(qs), nil
}

func (c *Connection) LocalPeer() peer.ID  { return c.localPeer }
func (c *Connection) RemotePeer() peer.ID { return c.remotePeer }

// Close shuts the connection down gracefully. Idempotent.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.qc.CloseWithError(closeErrorCode, "")
}

// IsClosed reports whether Close was called or the QUIC connection has
// otherwise terminated (peer close, idle timeout, transport error).
func (c *Connection) IsClosed() bool {
	if c.closed.Load() {
		return true
	}
	select {
	case <-c.qc.Context().Done():
		return true
	default:
		return false
	}
}

var _ transport.MuxedConn = (*Connection)(nil)
