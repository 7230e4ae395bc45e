package peer

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	mh "github.com/multiformats/go-multihash"
)

// maxInlineKeyLength is the largest serialized public key that gets
// embedded directly in a PeerID via an identity multihash rather than
// hashed with SHA-256. Below this size the ID is invertible back to the
// key; above it, it is one-way.
const maxInlineKeyLength = 42

// ID is a content-addressed peer identifier: a multihash over (or,
// for small keys, an identity-wrapping of) a protobuf-serialized
// public key. Equality and ordering are byte-wise, which falls out of
// comparing the underlying string directly.
type ID string

// IDFromPublicKey derives the canonical PeerID for pub: keys that serialize to at most maxInlineKeyLength bytes are embedded
// verbatim via an identity multihash; longer keys are hashed with
// SHA-256.
func IDFromPublicKey(pub PublicKey) (ID, error) {
	raw, err := pub.Marshal()
	if err != nil {
		return "", fmt.Errorf("peer: marshal public key: %w", err)
	}
	return idFromKeyBytes(raw)
}

func idFromKeyBytes(serializedKey []byte) (ID, error) {
	code := uint64(mh.SHA2_256)
	if len(serializedKey) <= maxInlineKeyLength {
		code = mh.IDENTITY
	}
	h, err := mh.Sum(serializedKey, code, -1)
	if err != nil {
		return "", fmt.Errorf("peer: hash public key: %w", err)
	}
	return ID(h), nil
}

// IDFromBytes accepts either input encoding: bytes that already
// decode as a valid multihash are used verbatim (this is
// also how a longer-than-42-byte ID round-trips); bytes that don't are
// treated as a raw serialized public key and re-derived via
// IDFromPublicKey's embedding rule.
func IDFromBytes(b []byte) (ID, error) {
	if len(b) == 0 {
		return "", errors.New("peer: empty id bytes")
	}
	if _, err := mh.Cast(b); err == nil {
		return ID(b), nil
	}
	return idFromKeyBytes(b)
}

// Decode parses the base58 text form of a PeerID.
func Decode(s string) (ID, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("peer: invalid base58 peer id: %w", err)
	}
	if _, err := mh.Cast(b); err != nil {
		return "", fmt.Errorf("peer: not a valid multihash: %w", err)
	}
	return ID(b), nil
}

// String returns the base58 multihash text form.
func (id ID) String() string {
	return base58.Encode([]byte(id))
}

// MatchesPublicKey reports whether id was derived from pub.
func (id ID) MatchesPublicKey(pub PublicKey) bool {
	other, err := IDFromPublicKey(pub)
	if err != nil {
		return false
	}
	return id == other
}

// ExtractPublicKey recovers the embedded public key for IDs derived via
// the identity-multihash path (small keys only); it returns an error
// for SHA-256-derived IDs, which are one-way by design.
func (id ID) ExtractPublicKey() (PublicKey, error) {
	decoded, err := mh.Decode([]byte(id))
	if err != nil {
		return nil, fmt.Errorf("peer: decode multihash: %w", err)
	}
	if decoded.Code != mh.IDENTITY {
		return nil, errors.New("peer: id was not derived via identity multihash; key is not recoverable")
	}
	return UnmarshalPublicKey(decoded.Digest)
}

// Validate reports whether id is a well-formed multihash.
func (id ID) Validate() error {
	if len(id) == 0 {
		return errors.New("peer: empty peer id")
	}
	_, err := mh.Cast([]byte(id))
	return err
}
