package traversal

import (
	"context"

	"github.com/coreswarm/netcore/peer"
	"github.com/coreswarm/netcore/transport"
)

// Context is the external state a Mechanism's candidate collection and
// attempt operations read from: the known-addresses source and the set
// of registered transports.
type Context struct {
	LocalPeer   peer.ID
	AddressBook transport.AddressBook
	Transports  []transport.Transport
}

// knownAddresses returns p's known addresses, or nil if no address
// book is configured.
func (c *Context) knownAddresses(p peer.ID) []peer.Multiaddr {
	if c.AddressBook == nil {
		return nil
	}
	return c.AddressBook.KnownAddresses(p)
}

// transportsFor returns every registered transport that claims it can
// dial addr.
func (c *Context) transportsFor(addr peer.Multiaddr) []transport.Transport {
	var out []transport.Transport
	for _, t := range c.Transports {
		if t.CanDial(addr) {
			out = append(out, t)
		}
	}
	return out
}

// dialAddress is the context's dialAddress operation: it finds the
// first registered transport willing to dial addr and invokes it.
func (c *Context) dialAddress(ctx context.Context, addr peer.Multiaddr, remote peer.ID) (transport.MuxedConn, error) {
	for _, t := range c.Transports {
		if t.CanDial(addr) {
			return t.DialAddress(ctx, addr, remote)
		}
	}
	return nil, &InvalidAddressError{Address: addr.String()}
}
