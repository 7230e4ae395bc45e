package traversal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/yamux"
)

func addrCand(mechanismID string, kind peer.PathKind, score float64, text string) Candidate {
	a, err := peer.ParseMultiaddr(text)
	if err != nil {
		panic(err)
	}
	return Candidate{MechanismID: mechanismID, Address: &a, PathKind: kind, Score: score}
}

func TestDefaultPolicyOrdersScenario7(t *testing.T) {
	relay := addrCand("relay", peer.PathKindRelay, 0.1, "/ip4/1.1.1.1/udp/1/quic-v1")
	direct := addrCand("direct", peer.PathKindIP, 1.0, "/ip4/2.2.2.2/udp/2/quic-v1")
	holepunch := addrCand("holepunch", peer.PathKindHolePunch, 0.5, "/ip4/3.3.3.3/udp/3/quic-v1")

	ordered := DefaultPolicy{}.Order([]Candidate{relay, direct, holepunch}, &Context{})

	require.Equal(t, []string{"direct", "holepunch", "relay"}, ids(ordered))
}

func TestDefaultPolicyBreaksScoreTiesByAddressThenID(t *testing.T) {
	noAddr := Candidate{MechanismID: "b", PathKind: peer.PathKindIP, Score: 1.0}
	withAddr := addrCand("a", peer.PathKindIP, 1.0, "/ip4/2.2.2.2/udp/2/quic-v1")

	ordered := DefaultPolicy{}.Order([]Candidate{noAddr, withAddr}, &Context{})
	require.Equal(t, []string{"a", "b"}, ids(ordered))
}

func TestDefaultPolicyFallsBackOnOrdinaryErrors(t *testing.T) {
	p := DefaultPolicy{}
	require.True(t, p.ShouldFallback(assertErr{}, Candidate{}, &Context{}))
}

func TestDefaultPolicyDoesNotFallBackOnConnectionLimitReached(t *testing.T) {
	p := DefaultPolicy{}
	require.False(t, p.ShouldFallback(yamux.ErrConnectionLimitReached, Candidate{}, &Context{}))
}

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.MechanismID
	}
	return out
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
