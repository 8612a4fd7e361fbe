package transport

import (
	"context"

	"github.com/joshuafuller/mdns-bridge/internal/message"
)

// Ready is one readiness event: a datagram has been received on a
// registered socket. UserData is whatever the worker registered with
// Add — the bridge registers the interface record. On a receive error
// Packet is nil and Err is set; the pump that produced the error has
// stopped.
type Ready struct {
	UserData any
	Packet   *message.Packet
	Err      error
}

// Notifier multiplexes datagram readiness across a worker's sockets.
//
// Each registered socket gets a pump goroutine that blocks in Receive
// and hands completed packets to the worker over a shared unbuffered
// channel, so the worker processes strictly one ingress packet at a
// time, in arrival order. This is the Go rendering of a wait-for-ready
// kernel notifier: Add registers a socket with user data, Wait blocks
// for the next ready event.
type Notifier struct {
	events chan Ready
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{events: make(chan Ready)}
}

// Add registers a socket. The pump runs until its socket is closed.
func (n *Notifier) Add(conn *Conn, userData any) {
	go n.pump(conn, userData)
}

// Wait blocks for the next readiness event. The boolean is false when
// ctx was canceled before an event arrived.
func (n *Notifier) Wait(ctx context.Context) (Ready, bool) {
	select {
	case <-ctx.Done():
		return Ready{}, false
	case ev := <-n.events:
		return ev, true
	}
}

// pump receives datagrams on one socket and forwards them as events.
func (n *Notifier) pump(conn *Conn, userData any) {
	for {
		pkt := GetPacket()
		length, src, err := conn.Receive(pkt.Buf())
		if err != nil {
			PutPacket(pkt)
			n.events <- Ready{UserData: userData, Err: err}
			return
		}
		pkt.SetLen(length)
		pkt.SetSource(src)
		n.events <- Ready{UserData: userData, Packet: pkt}
	}
}
