package traversal

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/coreswarm/netcore/internal/logging"
	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/transport"
)

// Engine is the NAT-traversal entry point: given a target peer, it
// gathers candidates from every registered mechanism in parallel,
// merges and dedupes them, orders the result via Policy, and attempts
// each in turn until one connects.
type Engine struct {
	mechanisms []Mechanism
	byID       map[string]Mechanism
	policy     Policy
	logger     *zap.Logger
}

// NewEngine builds an Engine from a set of mechanisms and a policy. A
// nil policy defaults to DefaultPolicy. logger may be nil, in which
// case logging is a no-op.
func NewEngine(mechanisms []Mechanism, policy Policy, logger *zap.Logger) *Engine {
	if policy == nil {
		policy = DefaultPolicy{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	byID := make(map[string]Mechanism, len(mechanisms))
	for _, m := range mechanisms {
		byID[m.ID()] = m
	}
	return &Engine{mechanisms: mechanisms, byID: byID, policy: policy, logger: logger}
}

// Dial gathers, orders, and serially attempts candidates for target
// until one connects or every candidate is exhausted.
func (e *Engine) Dial(ctx context.Context, target peer.ID, tctx *Context) (transport.MuxedConn, error) {
	candidates, err := e.gather(ctx, tctx, target)
	if err != nil {
		return nil, err
	}
	candidates = dedupe(candidates)
	ordered := e.policy.Order(candidates, tctx)
	e.logger.Debug("traversal candidates ordered",
		zap.String("target", target.String()),
		zap.Int("count", len(ordered)))

	var lastErr error
	for _, c := range ordered {
		m, ok := e.byID[c.MechanismID]
		if !ok {
			continue
		}
		conn, err := m.Attempt(ctx, c, tctx)
		if err == nil {
			e.logger.Debug("traversal attempt succeeded",
				zap.String("mechanism", c.MechanismID), zap.String("target", target.String()))
			return conn, nil
		}
		lastErr = err
		e.logger.Warn("traversal attempt failed",
			zap.String("mechanism", c.MechanismID), zap.String("target", target.String()), zap.Error(err))
		if !e.policy.ShouldFallback(err, c, tctx) {
			return nil, err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoCandidate
}

// gather runs every mechanism's CollectCandidates concurrently and
// flattens the results. A single mechanism's error does not abort the
// others; it is simply treated as "no candidates from this mechanism".
func (e *Engine) gather(ctx context.Context, tctx *Context, target peer.ID) ([]Candidate, error) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []Candidate
	)
	wg.Add(len(e.mechanisms))
	for _, m := range e.mechanisms {
		go func(m Mechanism) {
			defer wg.Done()
			cs, err := m.CollectCandidates(ctx, tctx, target)
			if err != nil {
				e.logger.Debug("mechanism candidate collection failed",
					zap.String("mechanism", m.ID()), zap.Error(err))
				return
			}
			mu.Lock()
			all = append(all, cs...)
			mu.Unlock()
		}(m)
	}
	wg.Wait()
	return all, nil
}

// dedupe removes candidates that are identical in mechanism, target,
// and address, keeping the first occurrence (mechanisms are expected
// to report a given path at most once, but a pathological Mechanism
// implementation shouldn't be able to get it attempted twice).
func dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		k := c.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
