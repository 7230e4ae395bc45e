package quictransport

import (
	"crypto/tls"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// TicketCache stores TLS 1.3 session resumption tickets keyed by
// server identity string: a single expiring map, built once and
// read/written from many goroutines without external locking.
// Plugged in as a tls.Config's ClientSessionCache with ServerName set
// to the remote PeerID string, it keys resumption material per server
// identity while reusing crypto/tls's own resumption machinery
// instead of a bespoke one.
type TicketCache struct {
	c *cache.Cache
}

// NewTicketCache builds an empty cache. Tickets expire an hour after
// they were stored (reading one does not extend it); go-cache sweeps
// expired entries every ten minutes.
func NewTicketCache() *TicketCache {
	return &TicketCache{c: cache.New(time.Hour, 10*time.Minute)}
}

// Get satisfies tls.ClientSessionCache.
func (t *TicketCache) Get(sessionKey string) (*tls.ClientSessionState, bool) {
	v, ok := t.c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*tls.ClientSessionState)
	return sess, ok
}

// Put satisfies tls.ClientSessionCache. crypto/tls calls this with a
// nil state to invalidate a ticket after a failed resumption attempt.
func (t *TicketCache) Put(sessionKey string, cs *tls.ClientSessionState) {
	if cs == nil {
		t.c.Delete(sessionKey)
		return
	}
	t.c.Set(sessionKey, cs, cache.DefaultExpiration)
}

// Has reports whether resumption material exists for identity, so the
// dialer can decide upfront whether to attempt 0-RTT at all.
func (t *TicketCache) Has(identity string) bool {
	_, ok := t.c.Get(identity)
	return ok
}

var _ tls.ClientSessionCache = (*TicketCache)(nil)
