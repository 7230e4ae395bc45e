package traversal

import (
	"context"

	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/transport"
)

// directScore is the fixed score direct-IP candidates carry: the
// most preferred path when one exists.
const directScore = 1.0

// DirectMechanism proposes a plain dial to one of the target's known
// IP addresses.
type DirectMechanism struct{}

func (DirectMechanism) ID() string { return "direct" }
func (DirectMechanism) PathKind() peer.PathKind { return peer.PathKindIP }

func (m DirectMechanism) CollectCandidates(_ context.Context, tctx *Context, target peer.ID) ([]Candidate, error) {
	return candidatesForPathKind(tctx, target, m.ID(), peer.PathKindIP, peer.PathKindIP, func(peer.Multiaddr) float64 {
		return directScore
	}), nil
}

func (DirectMechanism) Attempt(ctx context.Context, c Candidate, tctx *Context) (transport.MuxedConn, error) {
	if c.Address == nil {
		return nil, &InvalidAddressError{Address: ""}
	}
	return tctx.dialAddress(ctx, *c.Address, c.TargetPeer)
}

var _ Mechanism = DirectMechanism{}
