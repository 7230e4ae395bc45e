// Package traversal implements the NAT-traversal policy layer:
// mechanisms propose candidate paths to a remote peer,
// a pluggable policy orders and filters them, and the engine tries
// each in turn until one connects.
package traversal

import "github.com/coreswarm/netcore/peer"

// Candidate is one proposed path to a remote peer, scored and tagged
// by the mechanism that produced it.
type Candidate struct {
	MechanismID string
	TargetPeer  peer.ID
	// Address may be nil for a mechanism that doesn't resolve to a
	// concrete multiaddr up front; the built-in Direct, Relay and
	// HolePunch mechanisms always set it and reject a nil Address in
	// Attempt. The default policy treats address-bearing candidates as
	// higher priority among otherwise-equal candidates.
	Address  *peer.Multiaddr
	PathKind peer.PathKind
	Score    float64
}

func (c Candidate) hasAddress() bool { return c.Address != nil }

// key identifies a candidate for dedupe purposes: same mechanism,
// same target, same address (or both address-less).
func (c Candidate) key() string {
	addr := ""
	if c.Address != nil {
		addr = c.Address.String()
	}
	return c.MechanismID + "|" + string(c.TargetPeer) + "|" + addr
}
