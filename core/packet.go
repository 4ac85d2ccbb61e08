package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ICMP message types handled by the engine.
const (
	TypeEchoReply              uint8 = 0
	TypeDestinationUnreachable uint8 = 3
	TypeEchoRequest            uint8 = 8
	TypeTimeExceeded           uint8 = 11
)

const (
	echoCode   = 0
	headerSize = 8
)

// ErrFormat is the sentinel wrapped by every FormatError.
var ErrFormat = errors.New("malformed ICMP packet")

// FormatError is returned when a buffer cannot be decoded as an ICMP packet.
type FormatError struct {
	Length int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %d bytes received of min %d", ErrFormat, e.Length, headerSize)
}

// Unwrap allows errors.Is(err, ErrFormat).
func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// Packet is an ICMP header followed by its payload.
type Packet struct {
	Type     uint8
	Code     uint8
	Checksum uint16
	ID       uint16
	Seq      uint16
	Payload  []byte
}

// NewEchoRequest builds an echo request packet, its checksum is filled by Marshal.
func NewEchoRequest(id, seq uint16, payload []byte) *Packet {
	return &Packet{
		Type:    TypeEchoRequest,
		Code:    echoCode,
		ID:      id,
		Seq:     seq,
		Payload: payload,
	}
}

// Marshal encodes the packet in wire format and stores the computed checksum in p.Checksum.
func (p *Packet) Marshal() []byte {
	b := make([]byte, headerSize+len(p.Payload))
	b[0] = p.Type
	b[1] = p.Code
	binary.BigEndian.PutUint16(b[4:6], p.ID)
	binary.BigEndian.PutUint16(b[6:8], p.Seq)
	copy(b[headerSize:], p.Payload)

	p.Checksum = Checksum(b)
	binary.BigEndian.PutUint16(b[2:4], p.Checksum)

	return b
}

// Len is the size of the packet on the wire.
func (p *Packet) Len() int {
	return headerSize + len(p.Payload)
}

// IsEchoReply returns whether the packet is a successful answer to an echo request.
func (p *Packet) IsEchoReply() bool {
	return p.Type == TypeEchoReply && p.Code == echoCode
}

// ParsePacket decodes an ICMP packet. The checksum is extracted but not verified.
func ParsePacket(b []byte) (*Packet, error) {
	if len(b) < headerSize {
		return nil, &FormatError{Length: len(b)}
	}

	payload := make([]byte, len(b)-headerSize)
	copy(payload, b[headerSize:])

	return &Packet{
		Type:     b[0],
		Code:     b[1],
		Checksum: binary.BigEndian.Uint16(b[2:4]),
		ID:       binary.BigEndian.Uint16(b[4:6]),
		Seq:      binary.BigEndian.Uint16(b[6:8]),
		Payload:  payload,
	}, nil
}

// Checksum computes the Internet checksum (RFC 1071) of b.
func Checksum(b []byte) uint16 {
	return ^fold(sum(b))
}

// VerifyChecksum returns whether the checksum field transmitted in b is consistent with its content.
func VerifyChecksum(b []byte) bool {
	return fold(sum(b)) == 0xffff
}

func sum(b []byte) uint32 {
	var s uint32
	for i := 0; i+1 < len(b); i += 2 {
		s += uint32(b[i])<<8 | uint32(b[i+1])
	}

	// odd length, pad with one zero byte
	if len(b)%2 == 1 {
		s += uint32(b[len(b)-1]) << 8
	}

	return s
}

func fold(s uint32) uint16 {
	for s > 0xffff {
		s = (s >> 16) + (s & 0xffff)
	}
	return uint16(s)
}
