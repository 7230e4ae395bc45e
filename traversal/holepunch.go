package traversal

import (
	"context"
	"errors"

	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/quictransport"
	"github.com/coreswarm/netcore/transport"
)

// holePunchBaseScore is the score every hole-punch candidate carries.
// Absent a richer signal (round-trip history, NAT type hints) the
// mechanism scores all of them identically, which is sufficient for
// the default policy's path-kind-first ordering to place them between
// direct and relay.
const holePunchBaseScore = 0.5

// HolePunchMechanism proposes dialing the target via coordinated UDP
// hole punching over an existing local QUIC listener.
type HolePunchMechanism struct {
	Coordinator *quictransport.HolePunchCoordinator
	Local       transport.SecuredListener
}

func (HolePunchMechanism) ID() string { return "holepunch" }
func (HolePunchMechanism) PathKind() peer.PathKind { return peer.PathKindHolePunch }

func (m HolePunchMechanism) CollectCandidates(_ context.Context, tctx *Context, target peer.ID) ([]Candidate, error) {
	return candidatesForPathKind(tctx, target, m.ID(), peer.PathKindIP, peer.PathKindHolePunch, func(peer.Multiaddr) float64 {
		return holePunchBaseScore
	}), nil
}

func (m HolePunchMechanism) Attempt(ctx context.Context, c Candidate, tctx *Context) (transport.MuxedConn, error) {
	if c.Address == nil {
		return nil, &InvalidAddressError{Address: ""}
	}
	result, conn, err := m.Coordinator.Punch(ctx, m.Local, *c.Address, c.TargetPeer)
	if errors.Is(err, quictransport.ErrPunchTimeout) {
		return nil, ErrPunchTimeout
	}
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, ErrPunchTimeout
	}
	return conn, nil
}

var _ Mechanism = HolePunchMechanism{}
