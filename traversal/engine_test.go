package traversal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/transport"
	"github.com/coreswarm/netcore/yamux"
)

// fakeMechanism is a test double that always proposes one fixed
// candidate and answers Attempt from a scripted result.
type fakeMechanism struct {
	id       string
	kind     peer.PathKind
	score    float64
	attempts *[]string
	err      error
	conn     transport.MuxedConn
}

func (f *fakeMechanism) ID() string { return f.id }
func (f *fakeMechanism) PathKind() peer.PathKind { return f.kind }

func (f *fakeMechanism) CollectCandidates(_ context.Context, _ *Context, target peer.ID) ([]Candidate, error) {
	a, _ := peer.ParseMultiaddr("/ip4/127.0.0.1/udp/1/quic-v1")
	return []Candidate{{MechanismID: f.id, TargetPeer: target, Address: &a, PathKind: f.kind, Score: f.score}}, nil
}

func (f *fakeMechanism) Attempt(_ context.Context, c Candidate, _ *Context) (transport.MuxedConn, error) {
	if f.attempts != nil {
		*f.attempts = append(*f.attempts, f.id)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

type fakeConn struct{ transport.MuxedConn }

func TestEngineFallsThroughToNextCandidateOnFailure(t *testing.T) {
	var attempted []string
	winner := &fakeConn{}
	relay := &fakeMechanism{id: "relay", kind: peer.PathKindRelay, score: 0.1, attempts: &attempted, err: errors.New("relay unreachable")}
	direct := &fakeMechanism{id: "direct", kind: peer.PathKindIP, score: 1.0, attempts: &attempted, err: errors.New("direct refused")}
	holepunch := &fakeMechanism{id: "holepunch", kind: peer.PathKindHolePunch, score: 0.5, attempts: &attempted, conn: winner}

	e := NewEngine([]Mechanism{relay, direct, holepunch}, nil, nil)
	conn, err := e.Dial(context.Background(), peer.ID("target"), &Context{})
	require.NoError(t, err)
	require.Same(t, winner, conn)
	require.Equal(t, []string{"direct", "holepunch"}, attempted)
}

func TestEngineReturnsErrorWhenNothingConnects(t *testing.T) {
	var attempted []string
	direct := &fakeMechanism{id: "direct", kind: peer.PathKindIP, score: 1.0, attempts: &attempted, err: errors.New("refused")}

	e := NewEngine([]Mechanism{direct}, nil, nil)
	_, err := e.Dial(context.Background(), peer.ID("target"), &Context{})
	require.Error(t, err)
}

func TestEngineStopsImmediatelyOnConnectionLimitReached(t *testing.T) {
	var attempted []string
	direct := &fakeMechanism{id: "direct", kind: peer.PathKindIP, score: 1.0, attempts: &attempted, err: yamux.ErrConnectionLimitReached}
	holepunch := &fakeMechanism{id: "holepunch", kind: peer.PathKindHolePunch, score: 0.5, attempts: &attempted, conn: &fakeConn{}}

	e := NewEngine([]Mechanism{direct, holepunch}, nil, nil)
	_, err := e.Dial(context.Background(), peer.ID("target"), &Context{})
	require.ErrorIs(t, err, yamux.ErrConnectionLimitReached)
	require.Equal(t, []string{"direct"}, attempted)
}
