package peer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultiaddrTextRoundTrip(t *testing.T) {
	cases := []string{
		"/ip4/127.0.0.1/tcp/4001",
		"/ip4/127.0.0.1/udp/4001/quic-v1",
		"/ip6/::1/udp/4001/quic-v1",
		"/dns4/example.com/tcp/443/wss",
		"/memory/1234",
	}
	for _, c := range cases {
		m, err := ParseMultiaddr(c)
		require.NoError(t, err, c)
		require.Equal(t, c, m.String())
	}
}

func TestMultiaddrRelayComponent(t *testing.T) {
	m, err := ParseMultiaddr("/ip4/1.2.3.4/tcp/4001/relay")
	require.NoError(t, err)
	require.Equal(t, PathKindRelay, m.PathKind())
}

func TestMultiaddrEquality(t *testing.T) {
	a, err := ParseMultiaddr("/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)
	b, err := ParseMultiaddr("/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)
	c, err := ParseMultiaddr("/ip4/127.0.0.1/tcp/4002")
	require.NoError(t, err)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestMultiaddrBinaryRoundTrip(t *testing.T) {
	cases := []string{
		"/ip4/127.0.0.1/tcp/4001",
		"/ip4/127.0.0.1/udp/4001/quic-v1",
		"/ip6/::1/udp/4001/quic-v1",
		"/dns4/example.com/tcp/443/wss",
		"/memory/1234",
	}
	for _, c := range cases {
		m, err := ParseMultiaddr(c)
		require.NoError(t, err, c)

		b, err := m.Binary()
		require.NoError(t, err, c)

		decoded, err := MultiaddrFromBinary(b)
		require.NoError(t, err, c)
		require.True(t, m.Equal(decoded), c)
	}
}

func TestMultiaddrPathKind(t *testing.T) {
	ip, err := ParseMultiaddr("/ip4/1.2.3.4/udp/4001/quic-v1")
	require.NoError(t, err)
	require.Equal(t, PathKindIP, ip.PathKind())

	local, err := ParseMultiaddr("/memory/42")
	require.NoError(t, err)
	require.Equal(t, PathKindLocal, local.PathKind())

	unknown := Multiaddr{}
	require.Equal(t, PathKindUnknown, unknown.PathKind())
}

func TestParseMultiaddrRejectsUnknownProtocol(t *testing.T) {
	_, err := ParseMultiaddr("/bogus/123")
	require.Error(t, err)
}

func TestParseMultiaddrRejectsMissingValue(t *testing.T) {
	_, err := ParseMultiaddr("/ip4")
	require.Error(t, err)
}
