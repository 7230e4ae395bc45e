package yamux

import (
	"sync"
	"time"
)

// autoTuneFastInterval is the threshold below which consecutive
// window-update cycles are considered "fast" for growth purposes. See
// DESIGN.md's resolution of the auto-tuning open question: the window
// doubles after three consecutive fast cycles, caps at maxAutoTuneWindow,
// and never shrinks mid-stream.
const autoTuneFastInterval = 500 * time.Millisecond

// autoTuneFastStreak is how many consecutive fast cycles trigger growth.
const autoTuneFastStreak = 3

// FlowController tracks one stream's receive-side credit accounting:
// how much more the peer may send before we must grant more.
// The companion concept, sendWindow (how much we may still send to the
// peer), lives directly on Stream since it is credited by inbound
// windowUpdate frames rather than computed locally.
type FlowController struct {
	mu sync.Mutex

	window     uint32 // remaining receive allowance before windowExceeded
	advertised uint32 // window size last communicated to the peer
	maxWindow  uint32
	autoTune   bool

	pendingConsumed uint32
	lastUpdate      time.Time
	fastStreak      int
}

// NewFlowController builds a controller starting at initialWindow,
// capable of growing to maxWindow when autoTune is enabled.
func NewFlowController(initialWindow, maxWindow uint32, autoTune bool) *FlowController {
	return &FlowController{
		window:     initialWindow,
		advertised: initialWindow,
		maxWindow:  maxWindow,
		autoTune:   autoTune,
		lastUpdate: time.Now(),
	}
}

// DataReceived accounts for n freshly arrived payload bytes. It
// returns false if the peer sent more than the outstanding allowance,
// a windowExceeded protocol violation; the caller must reset the
// stream in that case.
func (f *FlowController) DataReceived(n uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n > f.window {
		return false
	}
	f.window -= n
	return true
}

// DataConsumed records that the application drained n bytes and
// decides whether a windowUpdate should be emitted now. It returns the
// credit delta and whether to send it; ok is false when accumulated
// consumption hasn't yet crossed half the advertised window.
func (f *FlowController) DataConsumed(n uint32) (delta uint32, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pendingConsumed += n
	threshold := f.advertised / 2
	if threshold == 0 {
		threshold = 1
	}
	if f.pendingConsumed < threshold {
		return 0, false
	}

	now := time.Now()
	interval := now.Sub(f.lastUpdate)
	f.lastUpdate = now

	delta = f.pendingConsumed
	f.pendingConsumed = 0

	if f.autoTune {
		if interval < autoTuneFastInterval {
			f.fastStreak++
		} else {
			f.fastStreak = 0
		}
		if f.fastStreak >= autoTuneFastStreak && f.advertised < f.maxWindow {
			grown := f.advertised * 2
			if grown > f.maxWindow || grown < f.advertised {
				grown = f.maxWindow
			}
			delta += grown - f.advertised
			f.advertised = grown
			f.fastStreak = 0
		}
	}

	f.window += delta
	return delta, true
}

// CurrentWindow reports the outstanding receive allowance, for tests
// and diagnostics.
func (f *FlowController) CurrentWindow() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window
}
