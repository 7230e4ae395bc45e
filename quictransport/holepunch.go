package quictransport

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/coreswarm/netcore/internal/config"
	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/transport"
)

// HolePunchResult reports the outcome of one coordination attempt.
type HolePunchResult struct {
	Success       bool
	RemoteAddress peer.Multiaddr
	AttemptCount  int
	Duration      time.Duration
}

// HolePunchCoordinator runs synchronized UDP "punch" rounds against a
// peer believed to be behind a NAT, racing simultaneousAttempts dials
// per round and keeping the first success. It never owns the resulting
// connection: on success it hands back a MuxedConn dialed over the
// same socket the local listener already bound, via
// Transport.dialFromListener.
type HolePunchCoordinator struct {
	transport *Transport
	cfg       config.HolePunchConfig
	log       *zap.Logger
}

// NewHolePunchCoordinator builds a coordinator bound to t's identity
// and UDP sockets.
func NewHolePunchCoordinator(t *Transport, cfg config.HolePunchConfig, log *zap.Logger) *HolePunchCoordinator {
	if log == nil {
		log = t.log
	}
	return &HolePunchCoordinator{transport: t, cfg: cfg, log: log}
}

type punchAttempt struct {
	conn transport.MuxedConn
	err  error
}

// Punch validates that remote is an ip/udp/quic-v1 address, then fires
// rounds of simultaneousAttempts punch datagrams plus a dial attempt
// over local's bound socket, spaced retryDelay apart, until one
// succeeds or timeout elapses.
func (h *HolePunchCoordinator) Punch(ctx context.Context, local transport.SecuredListener, remote peer.Multiaddr, remotePeer peer.ID) (HolePunchResult, transport.MuxedConn, error) {
	start := time.Now()
	if !isQUICv1(remote) {
		return HolePunchResult{RemoteAddress: remote}, nil, ErrUnsupportedAddress
	}
	ln, ok := local.(*Listener)
	if !ok {
		return HolePunchResult{RemoteAddress: remote}, nil, fmt.Errorf("quictransport: hole punch requires a listener from this package")
	}
	hostport, err := udpHostPort(remote)
	if err != nil {
		return HolePunchResult{RemoteAddress: remote}, nil, err
	}
	remoteUDPAddr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return HolePunchResult{RemoteAddress: remote}, nil, fmt.Errorf("quictransport: resolve %s: %w", hostport, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	results := make(chan punchAttempt, h.cfg.SimultaneousAttempts*8)
	attempts := 0
	var lastErr error

	fireRound := func() {
		for i := 0; i < h.cfg.SimultaneousAttempts; i++ {
			attempts++
			go func() {
				// A bare datagram opens or refreshes this side's NAT
				// binding; the peer is expected to be doing the same back
				// at us from its own coordinator at roughly the same time.
				_, _ = ln.pconn.WriteTo([]byte{0}, remoteUDPAddr)
				conn, derr := h.transport.dialFromListener(ctx, ln.qt, remoteUDPAddr, remotePeer)
				select {
				case results <- punchAttempt{conn: conn, err: derr}:
				case <-ctx.Done():
				}
			}()
		}
	}

	fireRound()
	retry := time.NewTicker(h.cfg.RetryDelay)
	defer retry.Stop()

	for {
		select {
		case r := <-results:
			if r.err == nil {
				h.log.Debug("hole punch succeeded",
					zap.String("remote", remotePeer.String()), zap.Int("attempts", attempts))
				return HolePunchResult{
					Success:       true,
					RemoteAddress: remote,
					AttemptCount:  attempts,
					Duration:      time.Since(start),
				}, r.conn, nil
			}
			lastErr = r.err
		case <-retry.C:
			fireRound()
		case <-ctx.Done():
			result := HolePunchResult{
				Success:       false,
				RemoteAddress: remote,
				AttemptCount:  attempts,
				Duration:      time.Since(start),
			}
			if lastErr != nil {
				h.log.Debug("hole punch exhausted", zap.Error(lastErr), zap.Int("attempts", attempts))
			}
			return result, nil, ErrPunchTimeout
		}
	}
}
