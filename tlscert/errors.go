package tlscert

import (
	"errors"
	"fmt"
)

// Security / identity errors.
var (
	ErrMissingLibp2pExtension   = errors.New("tlscert: certificate has no libp2p identity extension")
	ErrInvalidExtensionSignature = errors.New("tlscert: libp2p extension signature does not verify")
)

// PeerIDMismatchError is returned when the peer ID derived from a
// verified certificate does not match the caller's expectation.
type PeerIDMismatchError struct {
	Expected, Actual fmt.Stringer
}

func (e *PeerIDMismatchError) Error() string {
	return fmt.Sprintf("tlscert: peer ID mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// CertificateInvalidError wraps a parse/structural failure with the
// reason it was rejected.
type CertificateInvalidError struct {
	Reason string
}

func (e *CertificateInvalidError) Error() string {
	return fmt.Sprintf("tlscert: certificate invalid: %s", e.Reason)
}
