package yamux

import (
	"encoding/binary"
	"errors"
)

// FrameType distinguishes the four wire frame kinds.
type FrameType uint8

const (
	TypeData         FrameType = 0
	TypeWindowUpdate FrameType = 1
	TypePing         FrameType = 2
	TypeGoAway       FrameType = 3
)

// Flags is the 16-bit flag bitfield carried in every frame header.
type Flags uint16

const (
	FlagSYN Flags = 0x0001
	FlagACK Flags = 0x0002
	FlagFIN Flags = 0x0004
	FlagRST Flags = 0x0008
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

const headerSize = 12

// Frame is the decoded representation of a single wire frame. Data is
// a zero-copy slice into the buffer DecodeFrame was called with; callers
// that retain it past the next decode call must copy it first.
type Frame struct {
	Version  uint8
	Type     FrameType
	Flags    Flags
	StreamID uint32
	// Length is the raw header length field: payload byte count for a
	// data frame, otherwise a semantic value (credit delta, ping
	// nonce, goAway reason code).
	Length uint32
	Data   []byte
}

// errNeedMoreData signals an incomplete frame; the caller's reader
// index must not advance.
var errNeedMoreData = errors.New("yamux: need more data")

// EncodeFrame renders f as its 12-byte header plus payload (for data
// frames). Big-endian throughout, matching the Yamux wire format. For a
// data frame the length field is always len(f.Data); for other types
// it is f.Length and f.Data is not written.
func EncodeFrame(f Frame) []byte {
	length := f.Length
	var payload []byte
	if f.Type == TypeData {
		payload = f.Data
		length = uint32(len(payload))
	}
	buf := make([]byte, headerSize+len(payload))
	buf[0] = f.Version
	buf[1] = byte(f.Type)
	binary.BigEndian.PutUint16(buf[2:4], uint16(f.Flags))
	binary.BigEndian.PutUint32(buf[4:8], f.StreamID)
	binary.BigEndian.PutUint32(buf[8:12], length)
	copy(buf[headerSize:], payload)
	return buf
}

// DecodeFrame attempts to parse one frame from the front of buf.
//
// On success it returns the frame and the number of bytes consumed.
// If buf does not yet hold a complete frame it returns errNeedMoreData
// and the caller must leave its reader index unchanged. Any other
// error is a protocol fault: version/type are validated before length
// is trusted, and an oversized data length is rejected before the
// payload is ever addressed, so no allocation happens for a hostile
// length field.
func DecodeFrame(buf []byte) (Frame, int, error) {
	if len(buf) < headerSize {
		return Frame{}, 0, errNeedMoreData
	}

	version := buf[0]
	if version != 0 {
		return Frame{}, 0, ErrInvalidVersion
	}
	typ := FrameType(buf[1])
	if typ > TypeGoAway {
		return Frame{}, 0, ErrInvalidFrameType
	}
	flags := Flags(binary.BigEndian.Uint16(buf[2:4]))
	streamID := binary.BigEndian.Uint32(buf[4:8])
	length := binary.BigEndian.Uint32(buf[8:12])

	if typ != TypeData {
		return Frame{
			Version:  version,
			Type:     typ,
			Flags:    flags,
			StreamID: streamID,
			Length:   length,
		}, headerSize, nil
	}

	if length > MaxFrameLength {
		return Frame{}, 0, ErrFrameTooLarge
	}
	total := headerSize + int(length)
	if len(buf) < total {
		return Frame{}, 0, errNeedMoreData
	}

	return Frame{
		Version:  version,
		Type:     typ,
		Flags:    flags,
		StreamID: streamID,
		Length:   length,
		Data:     buf[headerSize:total],
	}, total, nil
}
