package message

import (
	"net"

	"github.com/joshuafuller/mdns-bridge/internal/protocol"
)

// Packet is a fixed-capacity datagram buffer with source metadata
// captured at receive time.
//
// The capacity covers the RFC 6762 §17 maximum message including IP and
// UDP headers; actual mDNS payloads are shorter. Packets are reused via
// the transport pool, so all state is reset on Reset.
type Packet struct {
	data   [protocol.MaxPacketSize]byte
	length int
	src    net.Addr
}

// Buf returns the full backing buffer for a receive call.
func (p *Packet) Buf() []byte {
	return p.data[:]
}

// Bytes returns the valid portion of the packet.
func (p *Packet) Bytes() []byte {
	return p.data[:p.length]
}

// Len returns the current byte length.
func (p *Packet) Len() int {
	return p.length
}

// SetLen records the valid byte length after a receive or encode.
// Lengths beyond capacity are clamped; the transport never produces one.
func (p *Packet) SetLen(n int) {
	if n < 0 {
		n = 0
	}
	if n > len(p.data) {
		n = len(p.data)
	}
	p.length = n
}

// Source returns the datagram source address captured at receive time.
func (p *Packet) Source() net.Addr {
	return p.src
}

// SetSource records the datagram source address.
func (p *Packet) SetSource(addr net.Addr) {
	p.src = addr
}

// Reset clears the packet for reuse.
func (p *Packet) Reset() {
	p.length = 0
	p.src = nil
}
