package peer

// KeyType identifies the asymmetric algorithm backing a PublicKey or
// PrivateKey. Values match the protobuf enum this package serializes
// keys with, so they must not be renumbered.
type KeyType int

const (
	KeyTypeRSA KeyType = iota
	KeyTypeEd25519
	KeyTypeSecp256k1
	KeyTypeECDSA
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeRSA:
		return "RSA"
	case KeyTypeEd25519:
		return "Ed25519"
	case KeyTypeSecp256k1:
		return "Secp256k1"
	case KeyTypeECDSA:
		return "ECDSA"
	default:
		return "unknown"
	}
}
