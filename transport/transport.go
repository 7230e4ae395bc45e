// Package transport defines the capability sets that the Yamux and QUIC
// adapters both satisfy, and the small set of contracts external
// collaborators (application protocols above the stream abstraction,
// the multistream-select negotiator, the address book) are expected to
// implement against. Nothing in this package performs I/O; it exists so
// that traversal, application protocols, and the two concrete transports
// can be written against one shape instead of two.
package transport

import (
	"context"

	"github.com/coreswarm/netcore/peer"
)

// MuxedStream is the capability every logical stream exposes, whether it
// rides a Yamux connection or a native QUIC stream. Read returns one
// chunk of application data; callers that need a fixed-size read should
// buffer themselves, matching the Yamux stream's "one chunk per call"
// behavior in both transports.
type MuxedStream interface {
	Read() ([]byte, error)
	Write(b []byte) (int, error)

	// CloseWrite half-closes the write side. For Yamux this is
	// local-only bookkeeping plus a FIN frame; for QUIC it also closes
	// the underlying send side.
	CloseWrite() error

	// CloseRead half-closes the read side. Yamux has no wire signal for
	// this (no STOP_SENDING equivalent); QUIC sends STOP_SENDING.
	// Callers that need transport-uniform behavior should treat this as
	// advisory only.
	CloseRead() error

	// Close closes both directions and releases the stream from its
	// owning connection's table.
	Close() error

	// Reset aborts the stream immediately, signaling an error to the
	// peer rather than a graceful close.
	Reset() error

	// SetProtocolID/ProtocolID let an application protocol tag a stream
	// after multistream-select negotiates it; the core never interprets
	// this value.
	SetProtocolID(id string)
	ProtocolID() string
}

// MuxedConn is a secured, multiplexed connection to a single remote
// peer: the thing a Transport hands back after a successful dial or
// accept.
type MuxedConn interface {
	// OpenStream creates a new outbound stream. It may block (emitting a
	// SYN for Yamux, opening a QUIC bidi stream) but performs no
	// further I/O until the caller writes to the returned stream.
	OpenStream(ctx context.Context) (MuxedStream, error)

	// AcceptStream returns the next peer-initiated stream, in arrival
	// order, or an error once the connection is closed.
	AcceptStream() (MuxedStream, error)

	LocalPeer() peer.ID
	RemotePeer() peer.ID

	// Close shuts the connection down gracefully; it is idempotent.
	Close() error

	// IsClosed reports whether Close has completed (gracefully or
	// abruptly).
	IsClosed() bool
}

// SecuredListener accepts inbound MuxedConns on a bound address.
type SecuredListener interface {
	Accept(ctx context.Context) (MuxedConn, error)
	Close() error
	Multiaddr() peer.Multiaddr
}

// Transport is the capability the traversal engine dials through. The
// QUIC adapter (quictransport.Transport) implements it; the yamux
// package provides a MuxedConn but no Transport. Neither the engine nor
// the mechanisms depend on which implementation they are given.
type Transport interface {
	// CanDial reports whether this transport recognizes the address's
	// protocol stack (e.g. the QUIC adapter claims /.../udp/.../quic-v1).
	CanDial(addr peer.Multiaddr) bool

	DialAddress(ctx context.Context, addr peer.Multiaddr, remote peer.ID) (MuxedConn, error)

	Listen(addr peer.Multiaddr) (SecuredListener, error)
}

// TLSProvider is the capability a secured transport needs from an
// identity-binding certificate source. Concrete: tlscert.Provider. The
// interface itself carries only ConfigFor; building a tls.Config and
// verifying peer certificates are methods of the concrete provider, not
// of this interface.
type TLSProvider interface {
	// ConfigFor returns the TLS server name to use for a single
	// dial/accept. It returns no tls.Config; expectedRemote is passed
	// through but the interface does not require it to change the result.
	ConfigFor(expectedRemote peer.ID) (ServerName string, err error)
}

// ProtocolContext is handed to a registered protocol handler once
// multistream-select has agreed on a protocol string for an inbound
// stream. The core never constructs the handler itself (protocol
// registration is an external collaborator's responsibility) but
// defines this shape so collaborators have something concrete to
// implement against.
type ProtocolContext struct {
	Stream        MuxedStream
	RemotePeer    peer.ID
	RemoteAddress peer.Multiaddr
}

// ProtocolHandler is bound to a protocol ID string by a protocol
// registry (an external collaborator; no registry is implemented here).
type ProtocolHandler func(ctx context.Context, pc ProtocolContext)

// Negotiator is the multistream-select contract: it negotiates a
// protocol string over a freshly opened stream and must surface any
// bytes it read past the end of negotiation, since those bytes belong
// to the negotiated protocol and must not be silently dropped.
type Negotiator interface {
	// Negotiate returns the agreed protocol ID and any remainder bytes
	// already consumed from the stream during negotiation.
	Negotiate(ctx context.Context, s MuxedStream, proposed []string) (protocolID string, remainder []byte, err error)
}

// AddressBook is the abstract source of known addresses the traversal
// engine consults; no concrete implementation (persistence, discovery)
// lives in this core.
type AddressBook interface {
	KnownAddresses(p peer.ID) []peer.Multiaddr
}
