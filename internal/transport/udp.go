// Package transport owns the datagram plumbing the bridge core consumes:
// per-interface multicast sockets, the packet pool, and the readiness
// notifier that feeds the bridge workers.
package transport

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/joshuafuller/mdns-bridge/internal/errors"
	"github.com/joshuafuller/mdns-bridge/internal/protocol"
)

// Family selects the address family of a socket.
type Family int

const (
	// IPv4 is the 224.0.0.251 side of the bridge.
	IPv4 Family = iota

	// IPv6 is the ff02::fb side of the bridge.
	IPv6

	// FamilyCount sizes per-family tables.
	FamilyCount
)

// String returns the family mnemonic.
func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "invalid"
	}
}

// Conn is a bound multicast datagram endpoint on one interface for one
// address family: joined to the mDNS group on that interface, multicast
// loopback disabled, TTL / hop limit 255, egress pinned to the owning
// interface.
type Conn struct {
	family Family
	ifi    *net.Interface
	pc     net.PacketConn
	p4     *ipv4.PacketConn
	p6     *ipv6.PacketConn
	group  *net.UDPAddr
}

// Listen creates the bound multicast socket for one interface and
// family.
//
// The socket binds the wildcard address on port 5353 with SO_REUSEADDR
// and, where the platform has it, SO_REUSEPORT, so the bridge coexists
// with Avahi, Bonjour, and systemd-resolved on the same host
// (net.ListenConfig with a Control function; binding the group address
// directly via ListenMulticastUDP has known problems, see Go issues
// #73484 and #34728).
func Listen(family Family, ifi *net.Interface) (*Conn, error) {
	lc := net.ListenConfig{Control: PlatformControl}

	var network, wildcard string
	switch family {
	case IPv4:
		network, wildcard = "udp4", fmt.Sprintf("0.0.0.0:%d", protocol.Port)
	case IPv6:
		network, wildcard = "udp6", fmt.Sprintf("[::]:%d", protocol.Port)
	default:
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       fmt.Errorf("unknown address family %d", family),
		}
	}

	pc, err := lc.ListenPacket(context.Background(), network, wildcard)
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind %s port %d on %s", family, protocol.Port, ifi.Name),
		}
	}

	c := &Conn{family: family, ifi: ifi, pc: pc}

	switch family {
	case IPv4:
		c.group = protocol.MulticastGroupIPv4()
		c.p4 = ipv4.NewPacketConn(pc)
		if err := c.p4.JoinGroup(ifi, &net.UDPAddr{IP: c.group.IP}); err != nil {
			pc.Close()
			return nil, &errors.NetworkError{
				Operation: "join multicast group",
				Err:       err,
				Details:   fmt.Sprintf("%s on %s", protocol.MulticastAddrIPv4, ifi.Name),
			}
		}
		if err := c.p4.SetMulticastInterface(ifi); err != nil {
			pc.Close()
			return nil, &errors.NetworkError{Operation: "set multicast interface", Err: err, Details: ifi.Name}
		}
		if err := c.p4.SetMulticastTTL(protocol.MulticastTTL); err != nil {
			pc.Close()
			return nil, &errors.NetworkError{Operation: "set multicast TTL", Err: err, Details: ifi.Name}
		}
		if err := c.p4.SetMulticastLoopback(false); err != nil {
			pc.Close()
			return nil, &errors.NetworkError{Operation: "disable multicast loopback", Err: err, Details: ifi.Name}
		}
	case IPv6:
		c.group = protocol.MulticastGroupIPv6()
		c.p6 = ipv6.NewPacketConn(pc)
		if err := c.p6.JoinGroup(ifi, &net.UDPAddr{IP: c.group.IP}); err != nil {
			pc.Close()
			return nil, &errors.NetworkError{
				Operation: "join multicast group",
				Err:       err,
				Details:   fmt.Sprintf("%s on %s", protocol.MulticastAddrIPv6, ifi.Name),
			}
		}
		if err := c.p6.SetMulticastInterface(ifi); err != nil {
			pc.Close()
			return nil, &errors.NetworkError{Operation: "set multicast interface", Err: err, Details: ifi.Name}
		}
		if err := c.p6.SetMulticastHopLimit(protocol.MulticastTTL); err != nil {
			pc.Close()
			return nil, &errors.NetworkError{Operation: "set multicast hop limit", Err: err, Details: ifi.Name}
		}
		if err := c.p6.SetMulticastLoopback(false); err != nil {
			pc.Close()
			return nil, &errors.NetworkError{Operation: "disable multicast loopback", Err: err, Details: ifi.Name}
		}
	}

	return c, nil
}

// Family returns the address family of the socket.
func (c *Conn) Family() Family {
	return c.family
}

// Interface returns the owning network interface.
func (c *Conn) Interface() *net.Interface {
	return c.ifi
}

// Receive reads one datagram into buf and returns its length and source
// address. Receive blocks until a datagram arrives or the socket is
// closed.
func (c *Conn) Receive(buf []byte) (int, net.Addr, error) {
	n, src, err := c.pc.ReadFrom(buf)
	if err != nil {
		return 0, nil, &errors.NetworkError{
			Operation: "receive",
			Err:       err,
			Details:   fmt.Sprintf("%s %s", c.ifi.Name, c.family),
		}
	}
	return n, src, nil
}

// Send transmits one datagram to the mDNS group for this socket's
// family. The egress interface index rides in the control message on
// every send, so the kernel routes IPv6 datagrams out the correct link.
func (c *Conn) Send(payload []byte) error {
	var n int
	var err error

	switch c.family {
	case IPv4:
		cm := &ipv4.ControlMessage{IfIndex: c.ifi.Index}
		n, err = c.p4.WriteTo(payload, cm, c.group)
	case IPv6:
		cm := &ipv6.ControlMessage{IfIndex: c.ifi.Index}
		n, err = c.p6.WriteTo(payload, cm, c.group)
	}

	if err != nil {
		return &errors.NetworkError{
			Operation: "send",
			Err:       err,
			Details:   fmt.Sprintf("%d bytes to %s on %s", len(payload), c.group, c.ifi.Name),
		}
	}
	if n != len(payload) {
		return &errors.NetworkError{
			Operation: "send",
			Err:       fmt.Errorf("partial write: %d/%d bytes", n, len(payload)),
			Details:   fmt.Sprintf("%s on %s", c.group, c.ifi.Name),
		}
	}
	return nil
}

// Close releases the socket. Blocked Receive calls return with an error.
func (c *Conn) Close() error {
	if c.pc == nil {
		return nil
	}
	if err := c.pc.Close(); err != nil {
		return &errors.NetworkError{
			Operation: "close socket",
			Err:       err,
			Details:   fmt.Sprintf("%s %s", c.ifi.Name, c.family),
		}
	}
	return nil
}
