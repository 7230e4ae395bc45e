package traversal

import (
	"context"

	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/transport"
)

// relayScore is the fixed score relay candidates carry: always
// dialable in principle, but the least preferred path.
const relayScore = 0.1

// RelayMechanism proposes dialing the target through a known relay
// address. Negotiating the circuit-relay control protocol itself is an
// external collaborator's job; this mechanism
// only gets a MuxedConn established over whatever address the relay
// advertises, the same way DirectMechanism does for a plain IP.
type RelayMechanism struct{}

func (RelayMechanism) ID() string { return "relay" }
func (RelayMechanism) PathKind() peer.PathKind { return peer.PathKindRelay }

func (m RelayMechanism) CollectCandidates(_ context.Context, tctx *Context, target peer.ID) ([]Candidate, error) {
	return candidatesForPathKind(tctx, target, m.ID(), peer.PathKindRelay, peer.PathKindRelay, func(peer.Multiaddr) float64 {
		return relayScore
	}), nil
}

func (RelayMechanism) Attempt(ctx context.Context, c Candidate, tctx *Context) (transport.MuxedConn, error) {
	if c.Address == nil {
		return nil, &InvalidAddressError{Address: ""}
	}
	return tctx.dialAddress(ctx, *c.Address, c.TargetPeer)
}

var _ Mechanism = RelayMechanism{}
