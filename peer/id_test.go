package peer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeerIDRoundTripEd25519(t *testing.T) {
	_, pub, err := GenerateEd25519KeyPair(nil)
	require.NoError(t, err)

	id, err := IDFromPublicKey(pub)
	require.NoError(t, err)
	require.True(t, id.MatchesPublicKey(pub))

	text := id.String()
	decoded, err := Decode(text)
	require.NoError(t, err)
	require.Equal(t, id, decoded)

	// Ed25519 keys serialize well under the inline threshold, so the ID
	// embeds the key and it must be recoverable.
	recovered, err := decoded.ExtractPublicKey()
	require.NoError(t, err)
	require.True(t, recovered.Equals(pub))
}

func TestPeerIDRoundTripECDSALongKey(t *testing.T) {
	_, pub, err := GenerateECDSAKeyPair(nil)
	require.NoError(t, err)

	raw, err := pub.Marshal()
	require.NoError(t, err)
	// ECDSA P-256 SPKI envelopes exceed the inline threshold, so the ID
	// must be SHA-256-derived (one-way).
	require.Greater(t, len(raw), maxInlineKeyLength)

	id, err := IDFromPublicKey(pub)
	require.NoError(t, err)
	require.True(t, id.MatchesPublicKey(pub))

	_, err = id.ExtractPublicKey()
	require.Error(t, err)

	decoded, err := Decode(id.String())
	require.NoError(t, err)
	require.Equal(t, id, decoded)
}

func TestIDFromBytesAcceptsBothEncodings(t *testing.T) {
	_, pub, err := GenerateEd25519KeyPair(nil)
	require.NoError(t, err)
	rawKey, err := pub.Marshal()
	require.NoError(t, err)

	// Already-multihash-wrapped bytes are used verbatim.
	wrapped, err := IDFromPublicKey(pub)
	require.NoError(t, err)
	fromWrapped, err := IDFromBytes([]byte(wrapped))
	require.NoError(t, err)
	require.Equal(t, wrapped, fromWrapped)

	// A raw serialized public key is re-derived via the embedding rule.
	fromRaw, err := IDFromBytes(rawKey)
	require.NoError(t, err)
	require.Equal(t, wrapped, fromRaw)
}

func TestPeerIDEqualityIsByteWise(t *testing.T) {
	_, pubA, err := GenerateEd25519KeyPair(nil)
	require.NoError(t, err)
	_, pubB, err := GenerateEd25519KeyPair(nil)
	require.NoError(t, err)

	idA, err := IDFromPublicKey(pubA)
	require.NoError(t, err)
	idB, err := IDFromPublicKey(pubB)
	require.NoError(t, err)

	require.NotEqual(t, idA, idB)
	require.Equal(t, idA < idB || idB < idA, idA != idB)
}
