package quictransport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreswarm/netcore/peer"
)

func TestUDPHostPortAcceptsQUICv1(t *testing.T) {
	addr, err := peer.ParseMultiaddr("/ip4/127.0.0.1/udp/4242/quic-v1")
	require.NoError(t, err)
	hostport, err := udpHostPort(addr)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:4242", hostport)
	require.True(t, isQUICv1(addr))
}

func TestUDPHostPortRejectsTCP(t *testing.T) {
	addr, err := peer.ParseMultiaddr("/ip4/127.0.0.1/tcp/4242")
	require.NoError(t, err)
	_, err = udpHostPort(addr)
	require.ErrorIs(t, err, ErrUnsupportedAddress)
	require.False(t, isQUICv1(addr))
}

func TestUDPHostPortRejectsPlainQUIC(t *testing.T) {
	// Legacy "quic" (draft-29) must not be treated as quic-v1.
	addr, err := peer.ParseMultiaddr("/ip4/127.0.0.1/udp/4242/quic")
	require.NoError(t, err)
	_, err = udpHostPort(addr)
	require.ErrorIs(t, err, ErrUnsupportedAddress)
}
