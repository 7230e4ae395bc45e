package quictransport

import "errors"

var (
	// ErrUnsupportedAddress is returned when a multiaddr is not of the
	// form /ip{4,6}/.../udp/.../quic-v1 this adapter dials and listens on.
	ErrUnsupportedAddress = errors.New("quictransport: address is not an ip/udp/quic-v1 multiaddr")

	// ErrNoPeerCertificate means the handshake completed without the
	// verification callback ever recording a PeerID, which should not
	// happen if the TLS library enforced RequireAnyClientCert/server
	// cert presentation correctly.
	ErrNoPeerCertificate = errors.New("quictransport: handshake completed without a verified peer identity")

	// ErrListenerClosed is returned by Accept after Close.
	ErrListenerClosed = errors.New("quictransport: listener closed")

	// ErrPunchTimeout is returned by the hole-punch coordinator when no
	// round lands a usable path before its configured timeout.
	ErrPunchTimeout = errors.New("quictransport: hole punch coordination timed out")
)
