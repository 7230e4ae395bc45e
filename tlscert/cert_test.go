package tlscert

import (
	"crypto/rand"
	"crypto/x509"
	"testing"

	"github.com/coreswarm/netcore/peer"
	"github.com/stretchr/testify/require"
)

func genIdentity(t *testing.T) (peer.PrivateKey, peer.PublicKey) {
	t.Helper()
	priv, pub, err := peer.GenerateEd25519KeyPair(rand.Reader)
	require.NoError(t, err)
	return priv, pub
}

func TestGenerateAndVerifyBindsIdentity(t *testing.T) {
	priv, pub := genIdentity(t)
	wantPeerID, err := peer.IDFromPublicKey(pub)
	require.NoError(t, err)

	der, _, err := Generate(priv)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	verifiedPub, verifiedID, err := Verify(cert, "")
	require.NoError(t, err)
	require.Equal(t, wantPeerID, verifiedID)
	require.True(t, pub.Equals(verifiedPub))
}

func TestVerifyRejectsMutatedSignature(t *testing.T) {
	priv, _ := genIdentity(t)
	der, _, err := Generate(priv)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	found := false
	for i := range cert.Extensions {
		if cert.Extensions[i].Id.Equal(libp2pExtensionOID) {
			// Flip the last byte of the extension value, landing inside
			// the embedded signature OCTET STRING.
			v := cert.Extensions[i].Value
			v[len(v)-1] ^= 0xFF
			found = true
			break
		}
	}
	require.True(t, found, "generated certificate must carry the libp2p extension")

	_, _, err = Verify(cert, "")
	require.Error(t, err)
}

func TestVerifyRejectsPeerIDMismatch(t *testing.T) {
	priv, _ := genIdentity(t)
	der, _, err := Generate(priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	_, otherPub := genIdentity(t)
	otherID, err := peer.IDFromPublicKey(otherPub)
	require.NoError(t, err)

	_, _, err = Verify(cert, otherID)
	var mismatch *PeerIDMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestVerifyFailsOnMissingExtension(t *testing.T) {
	priv, _ := genIdentity(t)
	provider := NewProvider(priv)
	// Certificates from the provider always carry the extension; build
	// one with none to exercise the missing-extension path.
	cfg, _ := provider.ServerTLSConfig()
	require.NotNil(t, cfg.GetCertificate)

	noExtCert, err := x509.ParseCertificate(selfSignedWithoutExtension(t))
	require.NoError(t, err)
	_, _, err = Verify(noExtCert, "")
	require.ErrorIs(t, err, ErrMissingLibp2pExtension)
}
