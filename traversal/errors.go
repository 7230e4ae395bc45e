package traversal

import (
	"errors"
	"fmt"
)

// ErrNoCandidate is returned when every ordered candidate has been
// tried (or none existed) and the dial overall fails.
var ErrNoCandidate = errors.New("traversal: no candidate could connect")

// ErrPunchTimeout is the traversal-layer counterpart of
// quictransport.ErrPunchTimeout, returned by HolePunchMechanism when a
// punch attempt times out without a more specific underlying error.
var ErrPunchTimeout = errors.New("traversal: hole punch timed out")

// InvalidAddressError is returned when a candidate's address can't be
// dialed by any registered transport.
type InvalidAddressError struct {
	Address string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("traversal: invalid address %q", e.Address)
}
