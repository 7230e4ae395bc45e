package peer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/multiformats/go-varint"
)

// Proto identifies one component protocol in a Multiaddr.
type Proto int

const (
	ProtoIP4 Proto = iota
	ProtoIP6
	ProtoTCP
	ProtoUDP
	ProtoQUIC
	ProtoQUICV1
	ProtoWS
	ProtoWSS
	ProtoP2P
	ProtoDNS4
	ProtoMemory
	ProtoRelay
)

// kind classifies how a protocol's value is encoded on the wire and in
// text.
type valueKind int

const (
	valueNone  valueKind = iota // no value (ws, wss, quic, quic-v1, relay)
	valueFixed                  // fixed-width value (ip4=4 bytes, ip6=16 bytes, tcp/udp=2 bytes)
	valueLP                     // length-prefixed variable-width value (p2p, dns4, memory)
)

type protoInfo struct {
	name      string
	kind      valueKind
	fixedSize int // bytes, only meaningful when kind == valueFixed
}

var protoTable = map[Proto]protoInfo{
	ProtoIP4:    {"ip4", valueFixed, 4},
	ProtoIP6:    {"ip6", valueFixed, 16},
	ProtoTCP:    {"tcp", valueFixed, 2},
	ProtoUDP:    {"udp", valueFixed, 2},
	ProtoQUIC:   {"quic", valueNone, 0},
	ProtoQUICV1: {"quic-v1", valueNone, 0},
	ProtoWS:     {"ws", valueNone, 0},
	ProtoWSS:    {"wss", valueNone, 0},
	ProtoP2P:    {"p2p", valueLP, 0},
	ProtoDNS4:   {"dns4", valueLP, 0},
	ProtoMemory: {"memory", valueLP, 0},
	ProtoRelay:  {"relay", valueNone, 0},
}

var protoByName = func() map[string]Proto {
	m := make(map[string]Proto, len(protoTable))
	for p, info := range protoTable {
		m[info.name] = p
	}
	return m
}()

// Component is a single typed (protocol, value) pair within a
// Multiaddr.
type Component struct {
	Proto Proto
	Value string // text form of the value; empty for valueNone protocols
}

// Multiaddr is an ordered sequence of typed protocol components. Two
// Multiaddrs are equal if their component sequences are equal, which
// the default struct/slice comparison (via Equal) already gives us.
type Multiaddr struct {
	Components []Component
}

// PathKind classifies an address, independent of how a Mechanism
// scored it, based solely on its component sequence.
type PathKind int

const (
	PathKindUnknown PathKind = iota
	PathKindIP
	PathKindRelay
	PathKindHolePunch
	PathKindLocal
)

func (k PathKind) String() string {
	switch k {
	case PathKindIP:
		return "ip"
	case PathKindRelay:
		return "relay"
	case PathKindHolePunch:
		return "holePunch"
	case PathKindLocal:
		return "local"
	default:
		return "unknown"
	}
}

// PathKind derives the address's path kind from its component
// sequence. HolePunch is never derived here: a hole-punched address
// is indistinguishable from a plain IP address by its components
// alone; mechanisms tag that distinction on their candidates instead.
func (m Multiaddr) PathKind() PathKind {
	hasRelay, hasMemory, hasIP := false, false, false
	for _, c := range m.Components {
		switch c.Proto {
		case ProtoRelay:
			hasRelay = true
		case ProtoMemory:
			hasMemory = true
		case ProtoIP4, ProtoIP6, ProtoDNS4:
			hasIP = true
		}
	}
	switch {
	case hasRelay:
		return PathKindRelay
	case hasMemory:
		return PathKindLocal
	case hasIP:
		return PathKindIP
	default:
		return PathKindUnknown
	}
}

// Equal reports whether m and other have identical component
// sequences.
func (m Multiaddr) Equal(other Multiaddr) bool {
	if len(m.Components) != len(other.Components) {
		return false
	}
	for i := range m.Components {
		if m.Components[i] != other.Components[i] {
			return false
		}
	}
	return true
}

// String renders the text form: /proto/value/.../proto/value.
func (m Multiaddr) String() string {
	var b strings.Builder
	for _, c := range m.Components {
		info := protoTable[c.Proto]
		b.WriteByte('/')
		b.WriteString(info.name)
		if info.kind != valueNone {
			b.WriteByte('/')
			b.WriteString(c.Value)
		}
	}
	return b.String()
}

// ParseMultiaddr parses the /proto/value/... text form.
func ParseMultiaddr(s string) (Multiaddr, error) {
	if s == "" || s[0] != '/' {
		return Multiaddr{}, fmt.Errorf("peer: multiaddr must start with '/': %q", s)
	}
	parts := strings.Split(s, "/")[1:] // leading empty element before the first '/'
	var comps []Component
	for i := 0; i < len(parts); {
		name := parts[i]
		if name == "" {
			return Multiaddr{}, fmt.Errorf("peer: empty protocol name in %q", s)
		}
		p, ok := protoByName[name]
		if !ok {
			return Multiaddr{}, fmt.Errorf("peer: unknown protocol %q in %q", name, s)
		}
		info := protoTable[p]
		i++
		var value string
		if info.kind != valueNone {
			if i >= len(parts) {
				return Multiaddr{}, fmt.Errorf("peer: protocol %q missing value in %q", name, s)
			}
			value = parts[i]
			i++
		}
		if err := validateComponentValue(p, info, value); err != nil {
			return Multiaddr{}, fmt.Errorf("peer: %w", err)
		}
		comps = append(comps, Component{Proto: p, Value: value})
	}
	return Multiaddr{Components: comps}, nil
}

func validateComponentValue(p Proto, info protoInfo, value string) error {
	switch p {
	case ProtoIP4:
		if ip := net.ParseIP(value); ip == nil || ip.To4() == nil {
			return fmt.Errorf("invalid ip4 value %q", value)
		}
	case ProtoIP6:
		if ip := net.ParseIP(value); ip == nil || ip.To4() != nil {
			return fmt.Errorf("invalid ip6 value %q", value)
		}
	case ProtoTCP, ProtoUDP:
		port, err := strconv.ParseUint(value, 10, 16)
		if err != nil || port == 0 {
			return fmt.Errorf("invalid port value %q", value)
		}
	case ProtoP2P:
		if err := ID(value).Validate(); err != nil {
			if _, decErr := Decode(value); decErr != nil {
				return fmt.Errorf("invalid p2p value %q: %w", value, decErr)
			}
		}
	}
	return nil
}

// Binary encodes the multiaddr using the length-prefixed binary form:
// each component is a varint protocol code followed by its value,
// fixed-width for IPs/ports and varint-length-prefixed for everything
// else.
func (m Multiaddr) Binary() ([]byte, error) {
	var result []byte
	for _, c := range m.Components {
		info := protoTable[c.Proto]
		result = append(result, varint.ToUvarint(uint64(c.Proto))...)
		switch info.kind {
		case valueNone:
		case valueFixed:
			vb, err := encodeFixedValue(c.Proto, c.Value)
			if err != nil {
				return nil, err
			}
			result = append(result, vb...)
		case valueLP:
			result = append(result, varint.ToUvarint(uint64(len(c.Value)))...)
			result = append(result, []byte(c.Value)...)
		}
	}
	return result, nil
}

// MultiaddrFromBinary decodes the binary form produced by Binary.
func MultiaddrFromBinary(b []byte) (Multiaddr, error) {
	var comps []Component
	for len(b) > 0 {
		code, n, err := varint.FromUvarint(b)
		if err != nil {
			return Multiaddr{}, fmt.Errorf("peer: %w", errNeedMoreData)
		}
		b = b[n:]
		p := Proto(code)
		info, ok := protoTable[p]
		if !ok {
			return Multiaddr{}, fmt.Errorf("peer: unknown protocol code %d", code)
		}
		var value string
		switch info.kind {
		case valueNone:
		case valueFixed:
			if len(b) < info.fixedSize {
				return Multiaddr{}, errNeedMoreData
			}
			value, err = decodeFixedValue(p, b[:info.fixedSize])
			if err != nil {
				return Multiaddr{}, err
			}
			b = b[info.fixedSize:]
		case valueLP:
			l, n, err := varint.FromUvarint(b)
			if err != nil {
				return Multiaddr{}, fmt.Errorf("peer: %w", errNeedMoreData)
			}
			b = b[n:]
			if uint64(len(b)) < l {
				return Multiaddr{}, errNeedMoreData
			}
			value = string(b[:l])
			b = b[l:]
		}
		comps = append(comps, Component{Proto: p, Value: value})
	}
	return Multiaddr{Components: comps}, nil
}

func decodeFixedValue(p Proto, b []byte) (string, error) {
	switch p {
	case ProtoIP4:
		return net.IP(b).String(), nil
	case ProtoIP6:
		return net.IP(b).String(), nil
	case ProtoTCP, ProtoUDP:
		return strconv.FormatUint(uint64(binary.BigEndian.Uint16(b)), 10), nil
	default:
		return "", fmt.Errorf("peer: protocol %v has no fixed value decoding", p)
	}
}

func encodeFixedValue(p Proto, value string) ([]byte, error) {
	switch p {
	case ProtoIP4:
		ip := net.ParseIP(value).To4()
		if ip == nil {
			return nil, fmt.Errorf("peer: invalid ip4 value %q", value)
		}
		return []byte(ip), nil
	case ProtoIP6:
		ip := net.ParseIP(value).To16()
		if ip == nil {
			return nil, fmt.Errorf("peer: invalid ip6 value %q", value)
		}
		return []byte(ip), nil
	case ProtoTCP, ProtoUDP:
		port, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("peer: invalid port value %q", value)
		}
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(port))
		return b, nil
	default:
		return nil, fmt.Errorf("peer: protocol %v has no fixed value encoding", p)
	}
}

var errNeedMoreData = errors.New("peer: truncated multiaddr binary data")
