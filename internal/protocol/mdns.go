// Package protocol defines mDNS protocol constants and the record-type
// model used on the bridge hot path, per RFC 6762 (Multicast DNS) and
// RFC 1035 (DNS wire format).
//
// PRIMARY TECHNICAL AUTHORITY: RFC 6762 (Multicast DNS)
package protocol

import "net"

// mDNS transport constants per RFC 6762 §3.
const (
	// Port is the mDNS port number (5353) per RFC 6762 §3.
	Port = 5353

	// MulticastAddrIPv4 is the mDNS IPv4 multicast group (224.0.0.251) per RFC 6762 §3.
	MulticastAddrIPv4 = "224.0.0.251"

	// MulticastAddrIPv6 is the mDNS IPv6 link-local multicast group (ff02::fb) per RFC 6762 §3.
	MulticastAddrIPv6 = "ff02::fb"

	// MulticastTTL is the TTL / hop limit for outbound mDNS datagrams per RFC 6762 §11.
	//
	// RFC 6762 §11: "All Multicast DNS responses (including responses sent via
	// unicast) SHOULD be sent with IP TTL set to 255."
	MulticastTTL = 255
)

// MulticastGroupIPv4 returns the mDNS IPv4 multicast group address.
func MulticastGroupIPv4() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.ParseIP(MulticastAddrIPv4),
		Port: Port,
	}
}

// MulticastGroupIPv6 returns the mDNS IPv6 link-local multicast group address.
func MulticastGroupIPv6() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.ParseIP(MulticastAddrIPv6),
		Port: Port,
	}
}

// DNS message framing constants per RFC 1035 §4.1.
const (
	// HeaderSize is the fixed DNS message header size per RFC 1035 §4.1.1.
	HeaderSize = 12

	// QueryFixedSize is the fixed portion of a question entry following the
	// owner name (QTYPE + QCLASS) per RFC 1035 §4.1.2.
	QueryFixedSize = 4

	// RecordFixedSize is the fixed portion of a resource record following the
	// owner name (TYPE + CLASS + TTL + RDLENGTH) per RFC 1035 §4.1.3.
	RecordFixedSize = 10

	// MaxPacketSize is the receive and send buffer capacity.
	//
	// RFC 6762 §17 bounds an mDNS message by the interface MTU; 9000 covers
	// the largest commonly deployed jumbo frame including IP and UDP headers.
	MaxPacketSize = 9000
)

// DNS name constraints per RFC 1035 §3.1.
const (
	// MaxLabelLength is the maximum length of a single label (63 bytes).
	MaxLabelLength = 63

	// MaxNameLength is the maximum wire-format name length including the
	// terminating zero-length label.
	MaxNameLength = 256

	// MaxNameLabels is the maximum number of labels in a decoded name.
	MaxNameLabels = 128
)

// Section count hard caps.
//
// These are the largest counts that could possibly be honest in a
// MaxPacketSize message: a question is no smaller than 6 bytes and a
// resource record no smaller than 12, both with a compressed owner name.
// Counts beyond these caps fail the packet before any scratch growth.
const (
	MaxQueries = 1498
	MaxRecords = 749
)

// Name compression constants per RFC 1035 §4.1.4.
const (
	// CompressionMask identifies a compression pointer: a length byte whose
	// two high-order bits are set.
	CompressionMask byte = 0xC0

	// PointerValueMask extracts the 14-bit message offset from the two-byte
	// wire form of a compression pointer.
	PointerValueMask uint16 = 0x3FFF
)

// ClassIN is the Internet class per RFC 1035 §3.2.4.
//
// mDNS overlays the cache-flush bit (records, RFC 6762 §10.2) and the
// unicast-response bit (questions, RFC 6762 §5.4) on the top bit of the
// class field. The bridge copies class values through byte-for-byte and
// gives neither bit any semantics.
const ClassIN uint16 = 1
