package peer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/ed25519"
	"google.golang.org/protobuf/encoding/protowire"
)

// PublicKey is an asymmetric public key that can verify signatures and
// serialize itself to the wire envelope other peers parse.
type PublicKey interface {
	Type() KeyType
	// Raw returns the algorithm-specific encoding: 32 raw bytes for
	// Ed25519, SPKI DER for ECDSA (so it round-trips through
	// crypto/x509 the same way the libp2p-TLS certificate's embedded
	// key does).
	Raw() ([]byte, error)
	// Marshal returns the protobuf-serialized envelope: {Type, Data}.
	Marshal() ([]byte, error)
	Verify(data, sig []byte) (bool, error)
	Equals(other PublicKey) bool
}

// PrivateKey is the signing half of an identity keypair; its PeerID
// is derived via GetPublic.
type PrivateKey interface {
	Type() KeyType
	Raw() ([]byte, error)
	Sign(data []byte) ([]byte, error)
	GetPublic() PublicKey
	Equals(other PrivateKey) bool
}

// marshalKeyEnvelope encodes the {Type, Data} protobuf message by hand
// using protowire, matching the wire shape a generated
// message_PublicKey{Type, Data} would produce without requiring a
// .proto/protoc step for this small, fixed schema.
func marshalKeyEnvelope(t KeyType, raw []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, raw)
	return b
}

func unmarshalKeyEnvelope(data []byte) (t KeyType, raw []byte, err error) {
	haveType, haveData := false, false
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0, nil, fmt.Errorf("peer: malformed key envelope: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return 0, nil, fmt.Errorf("peer: malformed key type field: %w", protowire.ParseError(n))
			}
			t = KeyType(v)
			haveType = true
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return 0, nil, fmt.Errorf("peer: malformed key data field: %w", protowire.ParseError(n))
			}
			raw = append([]byte(nil), v...)
			haveData = true
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return 0, nil, fmt.Errorf("peer: malformed key envelope field: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if !haveType || !haveData {
		return 0, nil, errors.New("peer: key envelope missing Type or Data field")
	}
	return t, raw, nil
}

// UnmarshalPublicKey parses a protobuf-serialized public key envelope
// produced by Marshal.
func UnmarshalPublicKey(data []byte) (PublicKey, error) {
	t, raw, err := unmarshalKeyEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch t {
	case KeyTypeEd25519:
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("peer: invalid ed25519 public key length %d", len(raw))
		}
		return ed25519PublicKey{pub: ed25519.PublicKey(raw)}, nil
	case KeyTypeECDSA:
		pub, err := x509.ParsePKIXPublicKey(raw)
		if err != nil {
			return nil, fmt.Errorf("peer: invalid ecdsa public key: %w", err)
		}
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return nil, errors.New("peer: ecdsa key envelope did not contain an ECDSA key")
		}
		return ecdsaPublicKey{pub: ecPub}, nil
	default:
		return nil, fmt.Errorf("peer: unsupported key type %v", t)
	}
}

// --- Ed25519 ---

type ed25519PrivateKey struct {
	priv ed25519.PrivateKey
}

type ed25519PublicKey struct {
	pub ed25519.PublicKey
}

// GenerateEd25519KeyPair produces a fresh Ed25519 identity key.
func GenerateEd25519KeyPair(src io.Reader) (PrivateKey, PublicKey, error) {
	if src == nil {
		src = rand.Reader
	}
	_, priv, err := ed25519.GenerateKey(src)
	if err != nil {
		return nil, nil, fmt.Errorf("peer: generate ed25519 key: %w", err)
	}
	sk := ed25519PrivateKey{priv: priv}
	return sk, sk.GetPublic(), nil
}

func (k ed25519PrivateKey) Type() KeyType      { return KeyTypeEd25519 }
func (k ed25519PrivateKey) Raw() ([]byte, error) { return append([]byte(nil), k.priv...), nil }

func (k ed25519PrivateKey) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, data), nil
}

func (k ed25519PrivateKey) GetPublic() PublicKey {
	return ed25519PublicKey{pub: append(ed25519.PublicKey(nil), k.priv.Public().(ed25519.PublicKey)...)}
}

func (k ed25519PrivateKey) Equals(other PrivateKey) bool {
	o, ok := other.(ed25519PrivateKey)
	if !ok {
		return false
	}
	return k.priv.Equal(o.priv)
}

func (k ed25519PublicKey) Type() KeyType        { return KeyTypeEd25519 }
func (k ed25519PublicKey) Raw() ([]byte, error) { return append([]byte(nil), k.pub...), nil }
func (k ed25519PublicKey) Marshal() ([]byte, error) {
	raw, _ := k.Raw()
	return marshalKeyEnvelope(KeyTypeEd25519, raw), nil
}

func (k ed25519PublicKey) Verify(data, sig []byte) (bool, error) {
	return ed25519.Verify(k.pub, data, sig), nil
}

func (k ed25519PublicKey) Equals(other PublicKey) bool {
	o, ok := other.(ed25519PublicKey)
	if !ok {
		return false
	}
	return k.pub.Equal(o.pub)
}

// --- ECDSA P-256 ---

type ecdsaPrivateKey struct {
	priv *ecdsa.PrivateKey
}

type ecdsaPublicKey struct {
	pub *ecdsa.PublicKey
}

// GenerateECDSAKeyPair produces a fresh ECDSA P-256 identity key. This
// is also the curve the libp2p-TLS certificate's ephemeral key uses;
// the two are independent instances, never shared.
func GenerateECDSAKeyPair(src io.Reader) (PrivateKey, PublicKey, error) {
	if src == nil {
		src = rand.Reader
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), src)
	if err != nil {
		return nil, nil, fmt.Errorf("peer: generate ecdsa key: %w", err)
	}
	sk := ecdsaPrivateKey{priv: priv}
	return sk, sk.GetPublic(), nil
}

func (k ecdsaPrivateKey) Type() KeyType { return KeyTypeECDSA }

func (k ecdsaPrivateKey) Raw() ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(k.priv)
}

func (k ecdsaPrivateKey) Sign(data []byte) ([]byte, error) {
	digest := sha256Sum(data)
	return ecdsa.SignASN1(rand.Reader, k.priv, digest[:])
}

func (k ecdsaPrivateKey) GetPublic() PublicKey {
	return ecdsaPublicKey{pub: &k.priv.PublicKey}
}

func (k ecdsaPrivateKey) Equals(other PrivateKey) bool {
	o, ok := other.(ecdsaPrivateKey)
	if !ok {
		return false
	}
	return k.priv.Equal(o.priv)
}

func (k ecdsaPublicKey) Type() KeyType { return KeyTypeECDSA }

func (k ecdsaPublicKey) Raw() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(k.pub)
}

func (k ecdsaPublicKey) Marshal() ([]byte, error) {
	raw, err := k.Raw()
	if err != nil {
		return nil, err
	}
	return marshalKeyEnvelope(KeyTypeECDSA, raw), nil
}

func (k ecdsaPublicKey) Verify(data, sig []byte) (bool, error) {
	digest := sha256Sum(data)
	return ecdsa.VerifyASN1(k.pub, digest[:], sig), nil
}

func (k ecdsaPublicKey) Equals(other PublicKey) bool {
	o, ok := other.(ecdsaPublicKey)
	if !ok {
		return false
	}
	return k.pub.Equal(o.pub)
}
