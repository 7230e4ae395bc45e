package peer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEd25519SignVerify(t *testing.T) {
	priv, pub, err := GenerateEd25519KeyPair(nil)
	require.NoError(t, err)

	msg := []byte("hello libp2p")
	sig, err := priv.Sign(msg)
	require.NoError(t, err)

	ok, err := pub.Verify(msg, sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = pub.Verify([]byte("tampered"), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestECDSASignVerify(t *testing.T) {
	priv, pub, err := GenerateECDSAKeyPair(nil)
	require.NoError(t, err)

	msg := []byte("hello libp2p")
	sig, err := priv.Sign(msg)
	require.NoError(t, err)

	ok, err := pub.Verify(msg, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPublicKeyMarshalRoundTrip(t *testing.T) {
	_, edPub, err := GenerateEd25519KeyPair(nil)
	require.NoError(t, err)
	data, err := edPub.Marshal()
	require.NoError(t, err)
	roundTripped, err := UnmarshalPublicKey(data)
	require.NoError(t, err)
	require.True(t, roundTripped.Equals(edPub))

	_, ecPub, err := GenerateECDSAKeyPair(nil)
	require.NoError(t, err)
	data, err = ecPub.Marshal()
	require.NoError(t, err)
	roundTripped, err = UnmarshalPublicKey(data)
	require.NoError(t, err)
	require.True(t, roundTripped.Equals(ecPub))
}
