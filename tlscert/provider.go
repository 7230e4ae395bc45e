package tlscert

import (
	"crypto/tls"
	"crypto/x509"
	"sync"

	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/transport"
)

// ALPN is the literal ALPN identifier libp2p TLS connections negotiate.
const ALPN = "libp2p"

// Provider mints and verifies libp2p-TLS certificates for one local
// identity. Each dial/accept gets a fresh ephemeral certificate;
// ephemeral key material is cheap to generate and never reused across
// connections, so there is nothing to cache here beyond the identity
// key itself.
type Provider struct {
	identity peer.PrivateKey
}

// NewProvider builds a Provider signing with identity.
func NewProvider(identity peer.PrivateKey) *Provider {
	return &Provider{identity: identity}
}

// ConfigFor satisfies transport.TLSProvider. It returns the literal
// server name libp2p TLS uses (there is no real DNS hostname in this
// scheme); expectedRemote is accepted for interface symmetry with the
// dial path but does not change the returned name.
func (p *Provider) ConfigFor(expectedRemote peer.ID) (string, error) {
	return ALPN, nil
}

// VerificationResult is filled in by one handshake's
// VerifyPeerCertificate callback. It is scoped to a single
// tls.Config/connection attempt, never shared across concurrent
// handshakes, and read only after the handshake completes.
type VerificationResult struct {
	mu     sync.Mutex
	peerID peer.ID
	pubKey peer.PublicKey
	err    error
	done   bool
}

func (v *VerificationResult) set(pub peer.PublicKey, id peer.ID, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pubKey, v.peerID, v.err, v.done = pub, id, err, true
}

// PeerID returns the verified remote PeerID, or "" if the handshake
// hasn't completed verification yet (or failed).
func (v *VerificationResult) PeerID() peer.ID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.peerID
}

// PublicKey returns the verified remote identity public key.
func (v *VerificationResult) PublicKey() peer.PublicKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pubKey
}

// ServerTLSConfig returns a tls.Config suitable for accepting inbound
// libp2p-TLS connections, plus the VerificationResult that config's
// handshake will populate. The server doesn't yet know who's dialing,
// so no PeerID is pinned in advance.
func (p *Provider) ServerTLSConfig() (*tls.Config, *VerificationResult) {
	return p.tlsConfig("")
}

// ClientTLSConfig returns a tls.Config for dialing, optionally pinning
// expectedRemote so the handshake fails fast with PeerIDMismatchError,
// plus the VerificationResult that handshake will populate.
func (p *Provider) ClientTLSConfig(expectedRemote peer.ID) (*tls.Config, *VerificationResult) {
	return p.tlsConfig(expectedRemote)
}

func (p *Provider) tlsConfig(expectedRemote peer.ID) (*tls.Config, *VerificationResult) {
	result := &VerificationResult{}
	cfg := &tls.Config{
		NextProtos:         []string{ALPN},
		InsecureSkipVerify: true, // verification happens below, not x.509 chain trust
		ClientAuth:         tls.RequireAnyClientCert,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return p.certificate()
		},
		GetClientCertificate: func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return p.certificate()
		},
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			pub, peerID, err := p.verifyRaw(rawCerts, expectedRemote)
			result.set(pub, peerID, err)
			return err
		},
	}
	return cfg, result
}

func (p *Provider) certificate() (*tls.Certificate, error) {
	der, key, err := Generate(p.identity)
	if err != nil {
		return nil, err
	}
	return &tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}

func (p *Provider) verifyRaw(rawCerts [][]byte, expectedRemote peer.ID) (peer.PublicKey, peer.ID, error) {
	if len(rawCerts) == 0 {
		return nil, "", &CertificateInvalidError{Reason: "no certificate presented"}
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return nil, "", &CertificateInvalidError{Reason: "unparsable certificate: " + err.Error()}
	}
	return Verify(cert, expectedRemote)
}

var _ transport.TLSProvider = (*Provider)(nil)
