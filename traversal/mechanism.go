package traversal

import (
	"context"

	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/transport"
)

// Mechanism is one way of reaching a peer: direct dial, relay circuit,
// or coordinated hole punch. Concrete mechanisms are selected at
// construction time and registered with an Engine; nothing in the
// engine or policy switches on a mechanism's concrete type.
type Mechanism interface {
	ID() string
	PathKind() peer.PathKind

	// CollectCandidates is purely derivational: it reads tctx's known
	// addresses and registered transports and returns candidates for
	// this mechanism's path kind, never performing I/O itself.
	CollectCandidates(ctx context.Context, tctx *Context, target peer.ID) ([]Candidate, error)

	// Attempt tries to connect via candidate, invoking tctx's
	// dialAddress operation (or an equivalent for mechanisms, like
	// relay, that don't dial a literal address directly).
	Attempt(ctx context.Context, candidate Candidate, tctx *Context) (transport.MuxedConn, error)
}

// candidatesForPathKind is the shared "filter known addresses by path
// kind and transport support" logic every built-in mechanism uses.
// filterKind
// selects which known addresses this mechanism considers (derived
// purely from the address's own component sequence); tagKind is what
// the resulting Candidate is labeled with. These differ for
// HolePunchMechanism: a hole-punched address is, by component
// sequence, indistinguishable from a plain IP address, so
// the mechanism filters on PathKindIP but tags its candidates
// PathKindHolePunch.
func candidatesForPathKind(tctx *Context, target peer.ID, mechanismID string, filterKind, tagKind peer.PathKind, score func(peer.Multiaddr) float64) []Candidate {
	var out []Candidate
	for _, addr := range tctx.knownAddresses(target) {
		if addr.PathKind() != filterKind {
			continue
		}
		if len(tctx.transportsFor(addr)) == 0 {
			continue
		}
		a := addr
		out = append(out, Candidate{
			MechanismID: mechanismID,
			TargetPeer:  target,
			Address:     &a,
			PathKind:    tagKind,
			Score:       score(addr),
		})
	}
	return out
}
