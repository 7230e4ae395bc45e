package quictransport

import (
	"net"

	"github.com/coreswarm/netcore/peer"
)

// udpHostPort extracts the "host:port" dial target from an
// /ip{4,6}/.../udp/.../quic-v1 multiaddr, rejecting anything else this
// adapter can't drive.
func udpHostPort(addr peer.Multiaddr) (string, error) {
	var host, port string
	var sawIP, sawUDP, sawQUICv1 bool
	for _, c := range addr.Components {
		switch c.Proto {
		case peer.ProtoIP4, peer.ProtoIP6:
			host, sawIP = c.Value, true
		case peer.ProtoUDP:
			port, sawUDP = c.Value, true
		case peer.ProtoQUICV1:
			sawQUICv1 = true
		}
	}
	if !sawIP || !sawUDP || !sawQUICv1 {
		return "", ErrUnsupportedAddress
	}
	return net.JoinHostPort(host, port), nil
}

// isQUICv1 reports whether addr is a candidate this adapter, and the
// hole-punch coordinator, can act on at all.
func isQUICv1(addr peer.Multiaddr) bool {
	_, err := udpHostPort(addr)
	return err == nil
}
