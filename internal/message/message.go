// Package message defines DNS message wire format structures per RFC 1035.
package message

import (
	"encoding/binary"

	"github.com/joshuafuller/mdns-bridge/internal/errors"
	"github.com/joshuafuller/mdns-bridge/internal/protocol"
)

// Header represents the DNS message header per RFC 1035 §4.1.1.
//
// Wire format (big-endian):
//
//	                                1  1  1  1  1  1
//	  0  1  2  3  4  5  6  7  8  9  0  1  2  3  4  5
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                      ID                       |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|QR|   Opcode  |AA|TC|RD|RA|   Z    |   RCODE   |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                    QDCOUNT                    |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                    ANCOUNT                    |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                    NSCOUNT                    |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                    ARCOUNT                    |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//
// The bridge copies ID and Flags through verbatim; only the four section
// counts are rewritten on the way out.
type Header struct {
	ID      uint16
	Flags   uint16
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// ParseHeader parses the fixed 12-byte DNS message header.
func ParseHeader(msg []byte) (Header, error) {
	if len(msg) < protocol.HeaderSize {
		return Header{}, &errors.WireFormatError{
			Operation: "decode header",
			Offset:    0,
			Message:   "message shorter than the 12-byte header",
		}
	}

	return Header{
		ID:      binary.BigEndian.Uint16(msg[0:2]),
		Flags:   binary.BigEndian.Uint16(msg[2:4]),
		QDCount: binary.BigEndian.Uint16(msg[4:6]),
		ANCount: binary.BigEndian.Uint16(msg[6:8]),
		NSCount: binary.BigEndian.Uint16(msg[8:10]),
		ARCount: binary.BigEndian.Uint16(msg[10:12]),
	}, nil
}

// Section identifies which resource record section a record came from.
type Section uint8

const (
	SectionAnswer Section = iota
	SectionAuthority
	SectionAdditional
	sectionCount
)

// String returns the section mnemonic.
func (s Section) String() string {
	switch s {
	case SectionAnswer:
		return "answer"
	case SectionAuthority:
		return "authority"
	case SectionAdditional:
		return "additional"
	default:
		return "invalid"
	}
}

// Query is a parsed question entry: the decoded owner name plus the
// offset of the fixed QTYPE/QCLASS bytes in the source packet, which the
// encoder copies through verbatim.
type Query struct {
	Name  Name
	Type  protocol.RecordType
	fixed int
}

// Record is a parsed resource record. The fixed header bytes
// (TYPE/CLASS/TTL) and opaque RDATA are referenced by offset into the
// source packet; RData holds the decoded RDATA name for the types that
// carry one. SecondaryLen is the length of fixed or variable bytes
// adjacent to that name (the NSEC type bitmap).
type Record struct {
	Name         Name
	Type         protocol.RecordType
	Section      Section
	RData        Name
	HasRData     bool
	SecondaryLen int
	fixed        int
	rdataOff     int
	rdataLen     int
}
