// Package tlscert binds a TLS 1.3 handshake to a long-lived libp2p
// identity key. TLS alone only proves possession of the ephemeral
// certificate key; the extension here additionally proves possession
// of the caller's real identity key, by signing the certificate's own
// SubjectPublicKeyInfo bytes with it.
package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/coreswarm/netcore/peer"
)

// libp2pExtensionOID is the fixed OID identifying the identity-binding
// extension inside a certificate's extension list.
var libp2pExtensionOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 53594, 1, 1}

// handshakePrefix is prepended to the certificate's SPKI DER bytes
// before signing, so the signature can't be replayed against an
// unrelated byte string that happens to verify.
const handshakePrefix = "libp2p-tls-handshake:"

// signedKey is the DER SEQUENCE of two OCTET STRINGs carried in the
// extension value. encoding/asn1 marshals a []byte field as an OCTET
// STRING by default, so this struct's shape is exactly the wire form.
type signedKey struct {
	PublicKey []byte
	Signature []byte
}

const certValidityPeriod = 365 * 24 * time.Hour
const certClockSkewTolerance = time.Hour

// Generate produces an ephemeral ECDSA-P256 keypair, a self-signed
// certificate over it, and embeds the libp2p extension signed with
// identity. The returned certificate's leaf is self-signed; verifying
// it requires Verify, not a conventional CA chain.
func Generate(identity peer.PrivateKey) (certDER []byte, key *ecdsa.PrivateKey, err error) {
	ephemeral, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	spkiDER, err := x509.MarshalPKIXPublicKey(&ephemeral.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	message := append([]byte(handshakePrefix), spkiDER...)
	sig, err := identity.Sign(message)
	if err != nil {
		return nil, nil, err
	}
	identityPubBytes, err := identity.GetPublic().Marshal()
	if err != nil {
		return nil, nil, err
	}

	extValue, err := asn1.Marshal(signedKey{PublicKey: identityPubBytes, Signature: sig})
	if err != nil {
		return nil, nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "libp2p"},
		NotBefore:    now.Add(-certClockSkewTolerance),
		NotAfter:     now.Add(certValidityPeriod),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtraExtensions: []pkix.Extension{{
			Id:    libp2pExtensionOID,
			Value: extValue,
		}},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &ephemeral.PublicKey, ephemeral)
	if err != nil {
		return nil, nil, err
	}
	return der, ephemeral, nil
}

// Verify checks the identity binding carried by a parsed leaf
// certificate and returns the identity public key and derived PeerID.
// If expectedRemote is non-empty, the derived PeerID must match it
// exactly or verification fails with PeerIDMismatchError.
func Verify(cert *x509.Certificate, expectedRemote peer.ID) (peer.PublicKey, peer.ID, error) {
	var ext *pkix.Extension
	for i := range cert.Extensions {
		if cert.Extensions[i].Id.Equal(libp2pExtensionOID) {
			ext = &cert.Extensions[i]
			break
		}
	}
	if ext == nil {
		return nil, "", ErrMissingLibp2pExtension
	}

	var sk signedKey
	if rest, err := asn1.Unmarshal(ext.Value, &sk); err != nil || len(rest) > 0 {
		return nil, "", &CertificateInvalidError{Reason: "malformed libp2p extension"}
	}

	// SPKI-byte equality is load-bearing: verify against the exact
	// bytes the certificate carries right now, not a re-encoding of
	// the parsed public key (which could legally differ byte-for-byte
	// while remaining semantically equivalent DER).
	message := append([]byte(handshakePrefix), cert.RawSubjectPublicKeyInfo...)

	pub, err := peer.UnmarshalPublicKey(sk.PublicKey)
	if err != nil {
		return nil, "", &CertificateInvalidError{Reason: "invalid embedded public key: " + err.Error()}
	}

	ok, err := pub.Verify(message, sk.Signature)
	if err != nil || !ok {
		return nil, "", ErrInvalidExtensionSignature
	}

	derived, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return nil, "", &CertificateInvalidError{Reason: "could not derive PeerID: " + err.Error()}
	}

	if expectedRemote != "" && derived != expectedRemote {
		return nil, "", &PeerIDMismatchError{Expected: expectedRemote, Actual: derived}
	}

	return pub, derived, nil
}
