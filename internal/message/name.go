// Package message implements the mDNS wire codec for the bridge hot
// path: name decoding with compression-pointer validation per RFC 1035
// §4.1.4, full message decoding with per-type RDATA handling, and
// re-encoding with a per-packet name compression dictionary.
package message

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/joshuafuller/mdns-bridge/internal/errors"
	"github.com/joshuafuller/mdns-bridge/internal/protocol"
)

// Name is the canonical in-memory form of a parsed wire name: a
// contiguous label sequence terminated by a zero length byte (identical
// to the uncompressed wire encoding), plus a per-label offset table in
// top-down order.
//
// Invariants after a successful decode: every non-terminal label length
// is in [1,63], the total length including the terminator is at most
// protocol.MaxNameLength, the label count is at most
// protocol.MaxNameLabels, and the terminator is always present.
type Name struct {
	data    [protocol.MaxNameLength]byte
	length  int
	labels  int
	offsets [protocol.MaxNameLabels]uint16
}

// Reset clears the name for reuse.
func (n *Name) Reset() {
	n.length = 0
	n.labels = 0
}

// Bytes returns the uncompressed wire form including the terminator.
func (n *Name) Bytes() []byte {
	return n.data[:n.length]
}

// Length returns the total byte length including the terminator.
func (n *Name) Length() int {
	return n.length
}

// LabelCount returns the number of labels, not counting the terminator.
func (n *Name) LabelCount() int {
	return n.labels
}

// Label returns label i (top-down order) in wire form, length prefix
// included.
func (n *Name) Label(i int) []byte {
	off := int(n.offsets[i])
	return n.data[off : off+1+int(n.data[off])]
}

// Equal reports whether two names have identical wire bytes.
// DNS names compare case-insensitively in principle; the bridge
// compares byte-for-byte, matching its byte-preserving re-encoding.
func (n *Name) Equal(other *Name) bool {
	if n.length != other.length {
		return false
	}
	for i := 0; i < n.length; i++ {
		if n.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

// String returns the dotted presentation form for log lines.
func (n *Name) String() string {
	if n.labels == 0 {
		return "."
	}
	var b strings.Builder
	for i := 0; i < n.labels; i++ {
		if i > 0 {
			b.WriteByte('.')
		}
		lbl := n.Label(i)
		b.Write(lbl[1:])
	}
	return b.String()
}

// ParseName decodes a wire name starting at offset into n, following
// compression pointers per RFC 1035 §4.1.4, and returns the offset of
// the first byte after the name in the message.
//
// The returned offset advances past the first pointer encountered (two
// bytes) or past the terminator; it never follows the compression chain
// as a consumption measure.
//
// Pointer rules enforced: a pointer must target an offset at or beyond
// the DNS header and strictly before the pointer itself. Together with
// the label-count cap this bounds the walk — consecutive pointers
// strictly decrease, and any pointer/label cycle consumes label budget
// on every round — so no separate jump counter is needed.
func ParseName(msg []byte, offset int, n *Name) (int, error) {
	n.Reset()

	if offset < 0 || offset >= len(msg) {
		return offset, &errors.WireFormatError{
			Operation: "decode name",
			Offset:    offset,
			Message:   "name offset out of bounds",
		}
	}

	pos := offset
	next := 0

	for {
		if pos >= len(msg) {
			return offset, &errors.WireFormatError{
				Operation: "decode name",
				Offset:    pos,
				Message:   "unexpected end of message",
			}
		}

		length := msg[pos]

		if length&protocol.CompressionMask == protocol.CompressionMask {
			if pos+2 > len(msg) {
				return offset, &errors.WireFormatError{
					Operation: "decode name",
					Offset:    pos,
					Message:   "truncated compression pointer",
				}
			}

			target := int(binary.BigEndian.Uint16(msg[pos:pos+2]) & protocol.PointerValueMask)

			// No pointers into the header, no forward or self
			// references.
			if target < protocol.HeaderSize || target >= pos {
				return offset, &errors.WireFormatError{
					Operation: "decode name",
					Offset:    pos,
					Message:   fmt.Sprintf("invalid compression pointer target %d", target),
				}
			}

			// The wire position advances past the first pointer only.
			if next == 0 {
				next = pos + 2
			}

			pos = target
			continue
		}

		if length == 0 {
			n.data[n.length] = 0
			n.length++
			if next == 0 {
				next = pos + 1
			}
			return next, nil
		}

		// The two remaining high-bit combinations (0x40, 0x80) are
		// reserved per RFC 1035 §4.1.4 and show up here as oversized
		// label lengths.
		if length > protocol.MaxLabelLength {
			return offset, &errors.WireFormatError{
				Operation: "decode name",
				Offset:    pos,
				Message:   fmt.Sprintf("label length %d exceeds maximum %d", length, protocol.MaxLabelLength),
			}
		}

		if pos+1+int(length) > len(msg) {
			return offset, &errors.WireFormatError{
				Operation: "decode name",
				Offset:    pos,
				Message:   fmt.Sprintf("truncated label: %d bytes declared, %d available", length, len(msg)-pos-1),
			}
		}

		if n.labels >= protocol.MaxNameLabels {
			return offset, &errors.WireFormatError{
				Operation: "decode name",
				Offset:    pos,
				Message:   fmt.Sprintf("name exceeds %d labels", protocol.MaxNameLabels),
			}
		}

		// One byte of reserve for the terminator.
		if n.length+1+int(length) > protocol.MaxNameLength-1 {
			return offset, &errors.WireFormatError{
				Operation: "decode name",
				Offset:    pos,
				Message:   fmt.Sprintf("name exceeds %d bytes", protocol.MaxNameLength),
			}
		}

		n.offsets[n.labels] = uint16(n.length)
		n.labels++
		n.data[n.length] = length
		copy(n.data[n.length+1:], msg[pos+1:pos+1+int(length)])
		n.length += 1 + int(length)
		pos += 1 + int(length)
	}
}
