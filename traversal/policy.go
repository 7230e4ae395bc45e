package traversal

import (
	"errors"
	"sort"

	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/yamux"
)

// Policy decides the attempt order across a merged candidate set and
// whether a failed attempt should fall through to the next candidate.
type Policy interface {
	Order(candidates []Candidate, tctx *Context) []Candidate
	ShouldFallback(err error, candidate Candidate, tctx *Context) bool
}

// pathKindRank gives the default policy's path-kind priority: lower
// ranks are tried first. local < ip < holePunch < relay < unknown.
var pathKindRank = map[peer.PathKind]int{
	peer.PathKindLocal:     0,
	peer.PathKindIP:        1,
	peer.PathKindHolePunch: 2,
	peer.PathKindRelay:     3,
	peer.PathKindUnknown:   4,
}

// DefaultPolicy is the stock ordering and fallback rule set.
type DefaultPolicy struct{}

// Order sorts by path-kind priority, then score descending, then
// address-bearing candidates before address-less ones, then
// mechanismID ascending for a fully deterministic tie-break.
func (DefaultPolicy) Order(candidates []Candidate, tctx *Context) []Candidate {
	ordered := append([]Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if ra, rb := pathKindRank[a.PathKind], pathKindRank[b.PathKind]; ra != rb {
			return ra < rb
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.hasAddress() != b.hasAddress() {
			return a.hasAddress()
		}
		return a.MechanismID < b.MechanismID
	})
	return ordered
}

// ShouldFallback returns false only when err is a connection-limit
// fault, which is fatal for the whole dial attempt; every other error
// escalates to the next candidate.
func (DefaultPolicy) ShouldFallback(err error, candidate Candidate, tctx *Context) bool {
	return !errors.Is(err, yamux.ErrConnectionLimitReached)
}

var _ Policy = DefaultPolicy{}
